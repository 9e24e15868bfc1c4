package httpgin

import (
	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/kirinyoku/tixfront/internal/seatmap"
	"github.com/kirinyoku/tixfront/internal/service/reservation"
	"github.com/kirinyoku/tixfront/internal/session"
)

type OpenReservationRequest struct {
	ActionID string `json:"action_id" binding:"required"`
	VenueID  string `json:"venue_id"`
	CityID   string `json:"city_id"`
	EventID  int64  `json:"event_id" binding:"required,gt=0"`
}

type SeatMapEventRequest struct {
	Kind string      `json:"kind" binding:"required,oneof=hover reserve unreserve"`
	Seat domain.Seat `json:"seat"`
}

type ChooseTariffRequest struct {
	TariffID int64 `json:"tariff_id" binding:"required,gt=0"`
}

type AuthRequest struct {
	Email string `json:"email" binding:"required"`
}

type CreateOrderRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type RefundRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

// ErrorResponse is the body of every failed request. Kind tells the
// browser how to present it: "message" inline, "auth_required" as the
// email prompt, anything else as a failure of the screen.
type ErrorResponse struct {
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Advice  string `json:"advice,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ReservationResponse struct {
	reservation.View
	SeatMap session.SeatMapState `json:"seat_map"`
}

type SeatMapResponse struct {
	Commands []seatmap.Command    `json:"commands"`
	SeatMap  session.SeatMapState `json:"seat_map"`
	Cart     cart.Snapshot        `json:"cart"`
}

type CommitResponse struct {
	Hold domain.Hold `json:"hold"`
}

type AuthResponse struct {
	Replayed bool         `json:"replayed"`
	Hold     *domain.Hold `json:"hold,omitempty"`
}
