package domain

import (
	"time"

	"github.com/google/uuid"
)

type CategoryHold struct {
	CategoryID int64 `json:"category_id"`
	TariffID   int64 `json:"tariff_id,omitempty"`
	Quantity   int   `json:"quantity"`
}

type SeatHold struct {
	SeatID   int64 `json:"seat_id"`
	TariffID int64 `json:"tariff_id,omitempty"`
}

// ReserveRequest is the snapshot of cart intent sent to the server in one
// reserve call.
type ReserveRequest struct {
	EventID    int64          `json:"event_id"`
	Categories []CategoryHold `json:"categories,omitempty"`
	Seats      []SeatHold     `json:"seats,omitempty"`
}

func (r ReserveRequest) Empty() bool {
	return len(r.Categories) == 0 && len(r.Seats) == 0
}

// HeldSeat is one server-held unit. Category admissions are reported as
// seats too, carrying the category they were taken from.
type HeldSeat struct {
	SeatID       int64  `json:"seat_id"`
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name,omitempty"`
	Sector       string `json:"sector"`
	Row          string `json:"row"`
	Number       string `json:"number"`
	Price        int64  `json:"price"`
	TariffID     int64  `json:"tariff_id,omitempty"`
	TariffName   string `json:"tariff_name,omitempty"`
}

type Hold struct {
	TimeoutSeconds int        `json:"timeout_seconds"`
	Currency       string     `json:"currency,omitempty"`
	Seats          []HeldSeat `json:"seats"`
}

type CartEvent struct {
	EventID          int64      `json:"event_id"`
	ActionID         int64      `json:"action_id"`
	ActionName       string     `json:"action_name"`
	VenueName        string     `json:"venue_name"`
	Poster           string     `json:"poster"`
	Day              string     `json:"day"`
	Time             string     `json:"time"`
	FullNameRequired bool       `json:"full_name_required"`
	PhoneRequired    bool       `json:"phone_required"`
	FanIDRequired    bool       `json:"fan_id_required"`
	ServiceCharge    int64      `json:"service_charge"`
	Seats            []HeldSeat `json:"seats"`
}

// ServerCart is the server's view of everything the session holds.
type ServerCart struct {
	Events             []CartEvent `json:"events"`
	Currency           string      `json:"currency"`
	RemainingSeconds   int         `json:"remaining_seconds"`
	TotalServiceCharge int64       `json:"total_service_charge"`
	TotalSum           int64       `json:"total_sum"`
	CashbackPercent    float64     `json:"cashback_percent"`
}

func (c ServerCart) Empty() bool {
	return len(c.Events) == 0
}

func (c ServerCart) FullNameRequired() bool {
	for _, e := range c.Events {
		if e.FullNameRequired {
			return true
		}
	}
	return false
}

func (c ServerCart) PhoneRequired() bool {
	for _, e := range c.Events {
		if e.PhoneRequired {
			return true
		}
	}
	return false
}

func (c ServerCart) OrderTotal() int64 {
	return c.TotalSum + c.TotalServiceCharge
}

func (c ServerCart) Cashback() int64 {
	return int64(float64(c.TotalSum) / 100 * c.CashbackPercent)
}

type OrderStatus int

const (
	OrderCancelled  OrderStatus = -2
	OrderCancelling OrderStatus = -1
	OrderNew        OrderStatus = 0
	OrderProcessing OrderStatus = 1
	OrderPaid       OrderStatus = 2
	OrderRefunded   OrderStatus = 3
)

func (s OrderStatus) String() string {
	switch s {
	case OrderCancelled:
		return "CANCELLED"
	case OrderCancelling:
		return "CANCELLING"
	case OrderNew:
		return "NEW"
	case OrderProcessing:
		return "PROCESSING"
	case OrderPaid:
		return "PAID"
	case OrderRefunded:
		return "REFUNDED"
	default:
		return "UNKNOWN"
	}
}

type PlacedOrder struct {
	OrderID    int64       `json:"order_id"`
	PaymentURL string      `json:"payment_url"`
	Status     OrderStatus `json:"status"`
	StatusText string      `json:"status_text"`
}

type OrderDraft struct {
	Sum      int64
	Currency string
	Name     string
	Phone    string
}

// Receipt is the locally journaled record of a placed order.
type Receipt struct {
	ID         uuid.UUID   `json:"id"`
	SessionID  string      `json:"session_id"`
	OrderID    int64       `json:"order_id"`
	Sum        int64       `json:"sum"`
	Currency   string      `json:"currency"`
	Name       string      `json:"name,omitempty"`
	Phone      string      `json:"phone,omitempty"`
	PaymentURL string      `json:"payment_url"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

type AuditEntry struct {
	ID        uuid.UUID
	SessionID string
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}
