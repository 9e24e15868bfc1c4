package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/kirinyoku/tixfront/internal/seatmap"
	"github.com/kirinyoku/tixfront/internal/service/checkout"
	"github.com/kirinyoku/tixfront/internal/service/orders"
	"github.com/kirinyoku/tixfront/internal/service/reservation"
)

// Session is the storefront state of one browser.
type Session struct {
	ID          string
	Cart        *cart.Store
	Reservation *reservation.Service
	SeatMap     *seatmap.Adapter
	Checkout    *checkout.Service
	Orders      *orders.Service

	api    Upstream
	widget *seatmap.Outbox

	// mu applies the session's local mutations in arrival order.
	mu       sync.Mutex
	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Open enters an event and mounts its seat map. The upstream is queried
// before the session lock is taken.
func (s *Session) Open(ctx context.Context, req reservation.OpenRequest) (reservation.Opened, error) {
	const op = "session.Session.Open"

	opened, err := s.Reservation.Fetch(ctx, req)
	if err != nil {
		return reservation.Opened{}, fmt.Errorf("%s:%w", op, err)
	}

	s.Reservation.ReleaseForeign(ctx, opened.Event.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Reservation.Enter(opened.Event)

	switch {
	case !opened.Event.HasSeatMap():
		s.SeatMap.Reset()
	case opened.SchemaErr != nil:
		s.SeatMap.Fail(opened.Event, opened.SchemaErr)
	default:
		// a broken schema leaves the map in its error state
		_ = s.SeatMap.Mount(opened.Event, opened.Schema)
	}

	return opened, nil
}

// Mutate runs fn under the session lock.
func (s *Session) Mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// SeatEvent applies a seat map event and returns the widget commands it
// produced.
func (s *Session) SeatEvent(e seatmap.Event) ([]seatmap.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.SeatMap.Handle(e)
	return s.widget.Drain(), err
}

func (s *Session) ChooseTariff(tariffID int64) ([]seatmap.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.SeatMap.ChooseTariff(tariffID)
	return s.widget.Drain(), err
}

func (s *Session) CancelTariff() []seatmap.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SeatMap.CancelTariff()
	return s.widget.Drain()
}

// RemoveItem drops a line from the reservation summary. Seats are released
// through the chart so its visuals follow; the returned commands must be
// replayed by the browser.
func (s *Session) RemoveItem(key string) ([]seatmap.Command, error) {
	const op = "session.Session.RemoveItem"

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.Cart.Item(key)
	if !ok {
		return nil, nil
	}

	if it.Kind == domain.ItemSeat {
		s.SeatMap.Release(it.ID)
		return s.widget.Drain(), nil
	}

	if err := s.Reservation.RemoveItem(key); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return nil, nil
}

// Close disposes the session's timers.
func (s *Session) Close() {
	s.Checkout.Close()
}

// SeatMapState is the chart part of the reservation view.
type SeatMapState struct {
	Status  seatmap.Status `json:"status"`
	Error   string         `json:"error,omitempty"`
	Pending *domain.Seat   `json:"pending_seat,omitempty"`
}

func (s *Session) SeatMapState() SeatMapState {
	st, err := s.SeatMap.Status()
	out := SeatMapState{Status: st}
	if err != nil {
		out.Error = err.Error()
	}
	if seat, ok := s.SeatMap.Pending(); ok {
		out.Pending = &seat
	}
	return out
}
