package domain

import (
	"math"
	"strconv"
	"time"
)

type ItemKind string

const (
	ItemCategory ItemKind = "category"
	ItemSeat     ItemKind = "seat"
)

type AuthStatus string

const (
	AuthIdle             AuthStatus = "idle"
	AuthAuthenticated    AuthStatus = "authenticated"
	AuthNotAuthenticated AuthStatus = "not_authenticated"
)

// EventSnapshot is the display data a cart item carries so later screens
// can render it without refetching the event.
type EventSnapshot struct {
	ActionName string    `json:"action_name"`
	Poster     string    `json:"poster"`
	Address    string    `json:"address"`
	Date       time.Time `json:"date"`
}

// CartItem is a locally held line item: either a priced admission category
// (optionally narrowed to a tariff) or one physical seat.
type CartItem struct {
	Key          string        `json:"key"`
	Kind         ItemKind      `json:"kind"`
	ID           int64         `json:"id"`
	EventID      int64         `json:"event_id"`
	Name         string        `json:"name"`
	SubHeading   string        `json:"sub_heading,omitempty"`
	Price        int64         `json:"price"`
	Quantity     int           `json:"quantity"`
	TariffID     int64         `json:"tariff_id,omitempty"`
	TariffName   string        `json:"tariff_name,omitempty"`
	LimitGroupID string        `json:"limit_group_id,omitempty"`
	AddedAt      time.Time     `json:"added_at"`
	Event        EventSnapshot `json:"event"`
}

// CategoryKey returns "cid" or "cid:tid" when a tariff is set.
func CategoryKey(categoryID, tariffID int64) string {
	k := strconv.FormatInt(categoryID, 10)
	if tariffID != 0 {
		k += ":" + strconv.FormatInt(tariffID, 10)
	}
	return k
}

func SeatKey(seatID int64) string {
	return strconv.FormatInt(seatID, 10)
}

// MinorUnits converts an upstream decimal price into minor currency units.
func MinorUnits(p float64) int64 {
	return int64(math.Round(p * 100))
}

// MajorUnits formats minor units back into the upstream decimal notation.
func MajorUnits(v int64) string {
	return strconv.FormatFloat(float64(v)/100, 'f', -1, 64)
}
