package reservation

import (
	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/domain"
)

type CategoryView struct {
	domain.Category
	Quantity   int `json:"quantity"`
	Selectable int `json:"selectable"`
}

type GroupView struct {
	ID         string         `json:"id"`
	Remainder  int            `json:"remainder"`
	Categories []CategoryView `json:"categories"`
}

type View struct {
	Event      domain.Event      `json:"event"`
	Groups     []GroupView       `json:"groups"`
	Cart       cart.Snapshot     `json:"cart"`
	AuthStatus domain.AuthStatus `json:"auth_status"`
	Pending    bool              `json:"pending_auth"`
}

// View renders the open event with per-category selectable quantities.
func (s *Service) View() (View, error) {
	ev, err := s.Event()
	if err != nil {
		return View{}, err
	}

	snap := s.cart.Snapshot()

	v := View{
		Cart:       snap,
		AuthStatus: s.cart.AuthStatus(),
		Pending:    s.Pending(),
	}

	for _, g := range ev.LimitGroups {
		gv := GroupView{ID: g.ID, Remainder: g.Remainder}
		for _, c := range g.Categories {
			cv := CategoryView{Category: c}
			if len(c.Tariffs) > 0 {
				cv.Quantity = snap.CategoryTotal(ev.ID, c.ID)
				// any tariff key yields the category-wide bound
				cv.Selectable = Selectable(ev.ID, c, g, c.Tariffs[0].ID, snap)
			} else {
				cv.Quantity = snap.Quantity(domain.CategoryKey(c.ID, 0))
				cv.Selectable = Selectable(ev.ID, c, g, 0, snap)
			}
			gv.Categories = append(gv.Categories, cv)
		}
		v.Groups = append(v.Groups, gv)
	}

	ev.LimitGroups = nil
	v.Event = ev

	return v, nil
}
