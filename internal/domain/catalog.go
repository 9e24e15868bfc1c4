package domain

import "time"

type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatSelected  SeatState = "selected"
	SeatSold      SeatState = "sold"
)

type Tariff struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Category struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Price        int64    `json:"price"`
	Availability int      `json:"availability"`
	LimitGroupID string   `json:"limit_group_id"`
	Tariffs      []Tariff `json:"tariffs,omitempty"`
}

func (c Category) Tariff(id int64) (Tariff, bool) {
	for _, t := range c.Tariffs {
		if t.ID == id {
			return t, true
		}
	}
	return Tariff{}, false
}

// LimitGroup ties categories to a shared remainder pool. A zero Remainder
// means the group carries no extra cap.
type LimitGroup struct {
	ID         string     `json:"id"`
	Remainder  int        `json:"remainder"`
	Categories []Category `json:"categories"`
}

type Event struct {
	ID               int64        `json:"id"`
	ActionID         int64        `json:"action_id"`
	ActionName       string       `json:"action_name"`
	VenueName        string       `json:"venue_name"`
	Address          string       `json:"address"`
	Poster           string       `json:"poster"`
	Date             time.Time    `json:"date"`
	Currency         string       `json:"currency"`
	PlacementURL     string       `json:"placement_url,omitempty"`
	FullNameRequired bool         `json:"full_name_required"`
	PhoneRequired    bool         `json:"phone_required"`
	LimitGroups      []LimitGroup `json:"limit_groups"`
}

func (e Event) HasSeatMap() bool {
	return e.PlacementURL != ""
}

func (e Event) Snapshot() EventSnapshot {
	return EventSnapshot{
		ActionName: e.ActionName,
		Poster:     e.Poster,
		Address:    e.Address,
		Date:       e.Date,
	}
}

// Category looks a category up across all limit groups.
func (e Event) Category(id int64) (Category, LimitGroup, bool) {
	for _, g := range e.LimitGroups {
		for _, c := range g.Categories {
			if c.ID == id {
				return c, g, true
			}
		}
	}
	return Category{}, LimitGroup{}, false
}

type Action struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	VenueID   int64           `json:"venue_id"`
	VenueName string          `json:"venue_name"`
	Address   string          `json:"address"`
	Poster    string          `json:"poster"`
	Events    map[int64]Event `json:"events"`
}

// Seat is what the seat-map widget reports about one seat.
type Seat struct {
	SeatID     int64     `json:"seat_id"`
	Sector     string    `json:"sector"`
	Row        string    `json:"row"`
	Number     string    `json:"number"`
	CategoryID int64     `json:"category_id"`
	BasePrice  int64     `json:"base_price"`
	Tariffs    []Tariff  `json:"tariffs,omitempty"`
	State      SeatState `json:"state"`
	TariffID   int64     `json:"tariff_id,omitempty"`
}
