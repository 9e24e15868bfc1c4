package reservation

import (
	"fmt"

	"github.com/kirinyoku/tixfront/internal/domain"
)

// tariffDraft is the quantity editor of a category sold by tariff. Changes
// reach the cart only on Apply or Reset.
type tariffDraft struct {
	categoryID int64
	qty        map[int64]int
}

func (d *tariffDraft) total() int {
	n := 0
	for _, q := range d.qty {
		n += q
	}
	return n
}

type DraftLine struct {
	Tariff     domain.Tariff `json:"tariff"`
	Quantity   int           `json:"quantity"`
	Selectable int           `json:"selectable"`
}

type DraftView struct {
	CategoryID int64       `json:"category_id"`
	Lines      []DraftLine `json:"lines"`
	Total      int         `json:"total"`
	Sum        int64       `json:"sum"`
}

// OpenDraft starts editing a tariff category from what the cart holds.
func (s *Service) OpenDraft(categoryID int64) (DraftView, error) {
	const op = "service.reservation.OpenDraft"

	ev, cat, group, err := s.category(categoryID)
	if err != nil {
		return DraftView{}, fmt.Errorf("%s:%w", op, err)
	}

	if len(cat.Tariffs) == 0 {
		return DraftView{}, fmt.Errorf("%s:%w", op, ErrNoTariffs)
	}

	snap := s.cart.Snapshot()
	d := &tariffDraft{categoryID: cat.ID, qty: map[int64]int{}}
	for _, t := range cat.Tariffs {
		d.qty[t.ID] = snap.Quantity(domain.CategoryKey(cat.ID, t.ID))
	}

	s.mu.Lock()
	s.draft = d
	s.mu.Unlock()

	return s.draftView(ev, cat, group, d), nil
}

// DraftIncrease adds one unit of a tariff to the draft. The category total
// across tariffs stays within availability, and the limit group remainder
// counts the rest of the event's cart plus the draft.
func (s *Service) DraftIncrease(categoryID, tariffID int64) (DraftView, error) {
	const op = "service.reservation.DraftIncrease"

	ev, cat, group, d, err := s.openDraft(categoryID)
	if err != nil {
		return DraftView{}, fmt.Errorf("%s:%w", op, err)
	}

	if _, ok := cat.Tariff(tariffID); !ok {
		return DraftView{}, fmt.Errorf("%s:%w", op, ErrTariffNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if draftRoom(cat, group, d, s.othersInEvent(ev, cat)) == 0 {
		return DraftView{}, fmt.Errorf("%s:%w", op, ErrNothingSelectable)
	}

	d.qty[tariffID]++

	return s.draftViewLocked(ev, cat, group, d), nil
}

func (s *Service) DraftDecrease(categoryID, tariffID int64) (DraftView, error) {
	const op = "service.reservation.DraftDecrease"

	ev, cat, group, d, err := s.openDraft(categoryID)
	if err != nil {
		return DraftView{}, fmt.Errorf("%s:%w", op, err)
	}

	if _, ok := cat.Tariff(tariffID); !ok {
		return DraftView{}, fmt.Errorf("%s:%w", op, ErrTariffNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.qty[tariffID] > 0 {
		d.qty[tariffID]--
	}

	return s.draftViewLocked(ev, cat, group, d), nil
}

// ApplyDraft writes every tariff line of the draft into the cart, one
// AddItems step per line; zero lines delete their key.
func (s *Service) ApplyDraft(categoryID int64) error {
	const op = "service.reservation.ApplyDraft"

	ev, cat, _, d, err := s.openDraft(categoryID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.mu.Lock()
	items := make([]domain.CartItem, 0, len(cat.Tariffs))
	for _, t := range cat.Tariffs {
		items = append(items, categoryItem(ev, cat, &t, d.qty[t.ID]))
	}
	s.draft = nil
	s.mu.Unlock()

	s.cart.AddItems(items...)

	return nil
}

// ResetDraft removes every tariff line of the category from the cart.
func (s *Service) ResetDraft(categoryID int64) error {
	const op = "service.reservation.ResetDraft"

	ev, cat, _, err := s.category(categoryID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if len(cat.Tariffs) == 0 {
		return fmt.Errorf("%s:%w", op, ErrNoTariffs)
	}

	items := make([]domain.CartItem, 0, len(cat.Tariffs))
	for _, t := range cat.Tariffs {
		items = append(items, categoryItem(ev, cat, &t, 0))
	}

	s.mu.Lock()
	if s.draft != nil && s.draft.categoryID == categoryID {
		s.draft = nil
	}
	s.mu.Unlock()

	s.cart.AddItems(items...)

	return nil
}

func (s *Service) CloseDraft() {
	s.mu.Lock()
	s.draft = nil
	s.mu.Unlock()
}

func (s *Service) openDraft(categoryID int64) (domain.Event, domain.Category, domain.LimitGroup, *tariffDraft, error) {
	ev, cat, group, err := s.category(categoryID)
	if err != nil {
		return ev, cat, group, nil, err
	}

	s.mu.Lock()
	d := s.draft
	s.mu.Unlock()

	if d == nil || d.categoryID != categoryID {
		return ev, cat, group, nil, ErrDraftNotOpen
	}

	return ev, cat, group, d, nil
}

// draftRoom is how many more units the draft may take, given how many the
// rest of the event's cart already uses.
func draftRoom(cat domain.Category, group domain.LimitGroup, d *tariffDraft, others int) int {
	room := cat.Availability - d.total()
	if group.Remainder > 0 {
		room = min(room, group.Remainder-others-d.total())
	}
	return max(room, 0)
}

// othersInEvent counts the event's cart units outside of cat.
func (s *Service) othersInEvent(ev domain.Event, cat domain.Category) int {
	snap := s.cart.Snapshot()
	return snap.EventCount(ev.ID) - snap.CategoryTotal(ev.ID, cat.ID)
}

func (s *Service) draftView(ev domain.Event, cat domain.Category, group domain.LimitGroup, d *tariffDraft) DraftView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftViewLocked(ev, cat, group, d)
}

func (s *Service) draftViewLocked(ev domain.Event, cat domain.Category, group domain.LimitGroup, d *tariffDraft) DraftView {
	room := draftRoom(cat, group, d, s.othersInEvent(ev, cat))

	v := DraftView{CategoryID: cat.ID}
	for _, t := range cat.Tariffs {
		q := d.qty[t.ID]
		v.Lines = append(v.Lines, DraftLine{Tariff: t, Quantity: q, Selectable: room})
		v.Total += q
		v.Sum += t.Price * int64(q)
	}

	return v
}
