package seatmap

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/domain"
)

type Status string

const (
	StatusIdle  Status = "idle"
	StatusReady Status = "ready"
	StatusError Status = "error"
)

type EventKind string

const (
	EventHover     EventKind = "hover"
	EventReserve   EventKind = "reserve"
	EventUnreserve EventKind = "unreserve"
)

// Event is what the widget reports about a seat.
type Event struct {
	Kind EventKind   `json:"kind"`
	Seat domain.Seat `json:"seat"`
}

var (
	ErrNotReady       = errors.New("seat map is not ready")
	ErrSeatNotOnChart = errors.New("seat is not on the chart")
	ErrNoPendingSeat  = errors.New("no seat is waiting for a tariff")
	ErrTariffNotFound = errors.New("tariff not offered for this seat")
	ErrUnknownEvent   = errors.New("unknown seat map event")
)

// Adapter turns seat map events into cart mutations, and cart removals
// back into widget toggles.
type Adapter struct {
	widget Widget
	cart   *cart.Store
	logger *slog.Logger

	mu      sync.Mutex
	event   domain.Event
	status  Status
	err     error
	pending *domain.Seat
}

func NewAdapter(w Widget, store *cart.Store, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		widget: w,
		cart:   store,
		logger: logger,
		status: StatusIdle,
	}
}

// Mount draws the schema of ev. A widget failure leaves the adapter in
// StatusError until the next Mount; nothing is retried.
func (a *Adapter) Mount(ev domain.Event, svg string) error {
	const op = "seatmap.Adapter.Mount"

	a.mu.Lock()
	defer a.mu.Unlock()

	a.event = ev
	a.pending = nil

	if err := a.widget.Mount(svg); err != nil {
		a.status, a.err = StatusError, err
		a.logger.Warn("seat map failed to mount", "event_id", ev.ID, "error", err)
		return fmt.Errorf("%s:%w", op, err)
	}

	a.status, a.err = StatusReady, nil
	return nil
}

// Fail puts the adapter in StatusError without mounting, e.g. when the
// schema could not be fetched.
func (a *Adapter) Fail(ev domain.Event, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.event = ev
	a.pending = nil
	a.status, a.err = StatusError, err
}

// Reset returns the adapter to StatusIdle, for events without a seat map.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.event = domain.Event{}
	a.pending = nil
	a.status, a.err = StatusIdle, nil
}

func (a *Adapter) Status() (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.err
}

// Pending returns the seat waiting for a tariff choice.
func (a *Adapter) Pending() (domain.Seat, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil {
		return domain.Seat{}, false
	}
	return *a.pending, true
}

// Handle applies one widget event. Events are expected in the order the
// widget fired them.
func (a *Adapter) Handle(e Event) error {
	const op = "seatmap.Adapter.Handle"

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusReady {
		return fmt.Errorf("%s:%w", op, ErrNotReady)
	}

	var err error
	switch e.Kind {
	case EventHover:
		err = a.hover(e.Seat)
	case EventReserve:
		err = a.reserve(e.Seat)
	case EventUnreserve:
		err = a.unreserve(e.Seat)
	default:
		err = ErrUnknownEvent
	}
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (a *Adapter) hover(seat domain.Seat) error {
	if len(seat.Tariffs) == 0 || seat.State == domain.SeatSelected || seat.State == domain.SeatSold {
		return a.toggle(seat.SeatID, 0)
	}

	if _, ok := a.widget.Locate(seat.SeatID); !ok {
		return ErrSeatNotOnChart
	}

	a.pending = &seat
	return nil
}

func (a *Adapter) reserve(seat domain.Seat) error {
	ref, ok := a.widget.Locate(seat.SeatID)
	if !ok {
		return ErrSeatNotOnChart
	}

	item := domain.CartItem{
		Key:        domain.SeatKey(seat.SeatID),
		Kind:       domain.ItemSeat,
		ID:         seat.SeatID,
		EventID:    a.event.ID,
		Name:       fmt.Sprintf("%s ряд, %s место", seat.Row, seat.Number),
		SubHeading: "Сектор " + seat.Sector,
		Price:      seat.BasePrice,
		Quantity:   1,
		Event:      a.event.Snapshot(),
	}

	if cat, group, ok := a.event.Category(seat.CategoryID); ok {
		item.LimitGroupID = group.ID
		if item.Price == 0 {
			item.Price = cat.Price
		}
	}

	if seat.TariffID != 0 {
		if t, ok := tariffOf(seat, seat.TariffID); ok {
			item.Price = t.Price
			item.TariffID = t.ID
			item.TariffName = t.Name
		}
	}

	a.cart.IncreaseItem(item)
	a.widget.AcknowledgeLoaded(ref, true)

	return nil
}

func (a *Adapter) unreserve(seat domain.Seat) error {
	ref, ok := a.widget.Locate(seat.SeatID)
	if !ok {
		return ErrSeatNotOnChart
	}

	a.cart.RemoveItems(domain.SeatKey(seat.SeatID))
	a.widget.AcknowledgeLoaded(ref, false)

	return nil
}

// ChooseTariff selects the pending seat with the picked tariff and closes
// the tariff panel.
func (a *Adapter) ChooseTariff(tariffID int64) error {
	const op = "seatmap.Adapter.ChooseTariff"

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil {
		return fmt.Errorf("%s:%w", op, ErrNoPendingSeat)
	}
	if _, ok := tariffOf(*a.pending, tariffID); !ok {
		return fmt.Errorf("%s:%w", op, ErrTariffNotFound)
	}

	if err := a.toggle(a.pending.SeatID, tariffID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	a.pending = nil
	a.widget.Away()

	return nil
}

func (a *Adapter) CancelTariff() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = nil
	a.widget.Away()
}

// Release deselects a seat removed from the summary list. The widget
// toggles it and reports the unreserve back; seats the chart cannot
// locate are dropped from the cart directly.
func (a *Adapter) Release(seatID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == StatusReady {
		if ref, ok := a.widget.Locate(seatID); ok {
			a.widget.ToggleSeat(ref, 0)
			return
		}
	}

	a.cart.RemoveItems(domain.SeatKey(seatID))
}

func (a *Adapter) toggle(seatID, tariffID int64) error {
	ref, ok := a.widget.Locate(seatID)
	if !ok {
		return ErrSeatNotOnChart
	}
	a.widget.ToggleSeat(ref, tariffID)
	return nil
}

func tariffOf(seat domain.Seat, id int64) (domain.Tariff, bool) {
	for _, t := range seat.Tariffs {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Tariff{}, false
}
