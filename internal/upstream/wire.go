package upstream

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kirinyoku/tixfront/internal/domain"
)

// falsyString accepts a JSON string, false or null. The upstream sends
// false in place of absent string fields.
type falsyString string

func (f *falsyString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "false", "null", "true":
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// numbers are kept verbatim
		*f = falsyString(b)
		return nil
	}

	*f = falsyString(s)
	return nil
}

// truthyMode keeps the raw value of "mode" unless it is falsy.
type truthyMode string

func (m *truthyMode) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	switch s {
	case "", "0", "false", "null":
		*m = ""
	default:
		*m = truthyMode(s)
	}
	return nil
}

type envelope struct {
	Type    string          `json:"type"`
	Decode  json.RawMessage `json:"decode"`
	Error   falsyString     `json:"error"`
	Message falsyString     `json:"message"`
	Advice  falsyString     `json:"advice"`
	System  falsyString     `json:"system"`
	APIKey  falsyString     `json:"api_key"`
	Mode    truthyMode      `json:"mode"`
}

func (e envelope) err() error {
	if e.Type == "success" {
		return nil
	}
	return newAPIError(e.Type, string(e.Error), string(e.Message), string(e.Advice), string(e.System))
}

type wireCategory struct {
	Availability      int                `json:"availability"`
	CategoryPriceID   int64              `json:"categoryPriceId"`
	CategoryPriceName string             `json:"categoryPriceName"`
	Price             float64            `json:"price"`
	TariffIDMap       map[string]float64 `json:"tariffIdMap"`
}

type wireTariffPlan struct {
	TariffPlanID   int64  `json:"tariffPlanId"`
	TariffPlanName string `json:"tariffPlanName"`
}

type wireEvent struct {
	ActionEventID     int64 `json:"actionEventId"`
	CategoryLimitList []struct {
		CategoryList []wireCategory `json:"categoryList"`
		Remainder    int            `json:"remainder"`
	} `json:"categoryLimitList"`
	Currency         string           `json:"currency"`
	FullNameRequired bool             `json:"fullNameRequired"`
	PhoneRequired    bool             `json:"phoneRequired"`
	PlacementURL     string           `json:"placementUrl"`
	TariffPlanList   []wireTariffPlan `json:"tariffPlanList"`
	Timestamp        int64            `json:"timestamp"`
}

type wireAction struct {
	ActionID   int64                `json:"actionId"`
	ActionName string               `json:"actionName"`
	Address    string               `json:"address"`
	Poster     string               `json:"poster"`
	VenueID    int64                `json:"venueId"`
	VenueName  string               `json:"venueName"`
	Events     map[string]wireEvent `json:"events"`
}

func (w wireAction) toDomain() domain.Action {
	a := domain.Action{
		ID:        w.ActionID,
		Name:      w.ActionName,
		VenueID:   w.VenueID,
		VenueName: w.VenueName,
		Address:   w.Address,
		Poster:    w.Poster,
		Events:    make(map[int64]domain.Event, len(w.Events)),
	}

	for _, we := range w.Events {
		e := domain.Event{
			ID:               we.ActionEventID,
			ActionID:         w.ActionID,
			ActionName:       w.ActionName,
			VenueName:        w.VenueName,
			Address:          w.Address,
			Poster:           w.Poster,
			Currency:         we.Currency,
			PlacementURL:     we.PlacementURL,
			FullNameRequired: we.FullNameRequired,
			PhoneRequired:    we.PhoneRequired,
		}
		if we.Timestamp > 0 {
			e.Date = time.Unix(we.Timestamp, 0).UTC()
		}

		for gi, wg := range we.CategoryLimitList {
			g := domain.LimitGroup{
				ID:        strconv.Itoa(gi),
				Remainder: wg.Remainder,
			}
			for _, wc := range wg.CategoryList {
				g.Categories = append(g.Categories, domain.Category{
					ID:           wc.CategoryPriceID,
					Name:         wc.CategoryPriceName,
					Price:        domain.MinorUnits(wc.Price),
					Availability: wc.Availability,
					LimitGroupID: g.ID,
					Tariffs:      tariffsOf(wc.TariffIDMap, we.TariffPlanList),
				})
			}
			e.LimitGroups = append(e.LimitGroups, g)
		}

		a.Events[e.ID] = e
	}

	return a
}

// tariffsOf lists a category's tariffs in the event's plan order; ids the
// plan list does not know come last, by id.
func tariffsOf(prices map[string]float64, plans []wireTariffPlan) []domain.Tariff {
	if len(prices) == 0 {
		return nil
	}

	rank := make(map[int64]int, len(plans))
	names := make(map[int64]string, len(plans))
	for i, p := range plans {
		rank[p.TariffPlanID] = i
		names[p.TariffPlanID] = p.TariffPlanName
	}

	out := make([]domain.Tariff, 0, len(prices))
	for k, price := range prices {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.Tariff{ID: id, Name: names[id], Price: domain.MinorUnits(price)})
	}

	sort.Slice(out, func(i, j int) bool {
		ri, iok := rank[out[i].ID]
		rj, jok := rank[out[j].ID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i].ID < out[j].ID
		}
	})

	return out
}

type wireSeat struct {
	CategoryPriceID   int64       `json:"categoryPriceId"`
	CategoryPriceName string      `json:"categoryPriceName"`
	Number            falsyString `json:"number"`
	Row               falsyString `json:"row"`
	Sector            falsyString `json:"sector"`
	Price             float64     `json:"price"`
	SeatID            int64       `json:"seatId"`
	TariffPlanID      int64       `json:"tariffPlanId"`
	TariffPlanName    falsyString `json:"tariffPlanName"`
}

func (w wireSeat) toDomain() domain.HeldSeat {
	return domain.HeldSeat{
		SeatID:       w.SeatID,
		CategoryID:   w.CategoryPriceID,
		CategoryName: w.CategoryPriceName,
		Sector:       string(w.Sector),
		Row:          string(w.Row),
		Number:       string(w.Number),
		Price:        domain.MinorUnits(w.Price),
		TariffID:     w.TariffPlanID,
		TariffName:   string(w.TariffPlanName),
	}
}

func seatsOf(ws []wireSeat) []domain.HeldSeat {
	out := make([]domain.HeldSeat, 0, len(ws))
	for _, s := range ws {
		out = append(out, s.toDomain())
	}
	return out
}

type wireHold struct {
	CartTimeout int        `json:"cartTimeout"`
	Currency    string     `json:"currency"`
	SeatList    []wireSeat `json:"seatList"`
}

func (w wireHold) toDomain() domain.Hold {
	return domain.Hold{
		TimeoutSeconds: w.CartTimeout,
		Currency:       w.Currency,
		Seats:          seatsOf(w.SeatList),
	}
}

type wireCartEvent struct {
	ActionEventID    int64      `json:"actionEventId"`
	ActionID         int64      `json:"actionId"`
	ActionName       string     `json:"actionName"`
	VenueName        string     `json:"venueName"`
	SmallPosterURL   string     `json:"smallPosterUrl"`
	Day              string     `json:"day"`
	Time             string     `json:"time"`
	FullNameRequired bool       `json:"fullNameRequired"`
	PhoneRequired    bool       `json:"phoneRequired"`
	FanIDRequired    bool       `json:"fanIdRequired"`
	ServiceCharge    float64    `json:"serviceCharge"`
	SeatList         []wireSeat `json:"seatList"`
}

type wireCart struct {
	ActionEventList    []wireCartEvent `json:"actionEventList"`
	Currency           string          `json:"currency"`
	Time               int             `json:"time"`
	TotalServiceCharge float64         `json:"totalServiceCharge"`
	TotalSum           float64         `json:"totalSum"`
	Cashback           float64         `json:"cashback"`
}

func (w wireCart) toDomain() domain.ServerCart {
	c := domain.ServerCart{
		Currency:           w.Currency,
		RemainingSeconds:   w.Time,
		TotalServiceCharge: domain.MinorUnits(w.TotalServiceCharge),
		TotalSum:           domain.MinorUnits(w.TotalSum),
		CashbackPercent:    w.Cashback,
	}

	for _, e := range w.ActionEventList {
		c.Events = append(c.Events, domain.CartEvent{
			EventID:          e.ActionEventID,
			ActionID:         e.ActionID,
			ActionName:       e.ActionName,
			VenueName:        e.VenueName,
			Poster:           e.SmallPosterURL,
			Day:              e.Day,
			Time:             e.Time,
			FullNameRequired: e.FullNameRequired,
			PhoneRequired:    e.PhoneRequired,
			FanIDRequired:    e.FanIDRequired,
			ServiceCharge:    domain.MinorUnits(e.ServiceCharge),
			Seats:            seatsOf(e.SeatList),
		})
	}

	return c
}

type wirePlacedOrder struct {
	OrderID      int64  `json:"orderId"`
	FormURL      string `json:"formUrl"`
	StatusExtStr string `json:"statusExtStr"`
	StatusExtInt int    `json:"statusExtInt"`
}

func (w wirePlacedOrder) toDomain() domain.PlacedOrder {
	return domain.PlacedOrder{
		OrderID:    w.OrderID,
		PaymentURL: w.FormURL,
		Status:     domain.OrderStatus(w.StatusExtInt),
		StatusText: w.StatusExtStr,
	}
}
