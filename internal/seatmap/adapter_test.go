package seatmap

import (
	"errors"
	"testing"
	"time"

	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/clock"
	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op       string
	seatID   int64
	tariffID int64
	reserved bool
}

type fakeWidget struct {
	mountErr error
	seats    map[int64]bool
	calls    []call
}

func (w *fakeWidget) Mount(string) error { return w.mountErr }

func (w *fakeWidget) Locate(seatID int64) (SeatRef, bool) {
	if !w.seats[seatID] {
		return SeatRef{}, false
	}
	return SeatRef{SeatID: seatID, Handle: "c"}, true
}

func (w *fakeWidget) ToggleSeat(ref SeatRef, tariffID int64) {
	w.calls = append(w.calls, call{op: "click", seatID: ref.SeatID, tariffID: tariffID})
}

func (w *fakeWidget) AcknowledgeLoaded(ref SeatRef, reserved bool) {
	w.calls = append(w.calls, call{op: "loaded", seatID: ref.SeatID, reserved: reserved})
}

func (w *fakeWidget) Away() {
	w.calls = append(w.calls, call{op: "away"})
}

var testEvent = domain.Event{
	ID:         77,
	ActionName: "Concert",
	LimitGroups: []domain.LimitGroup{
		{ID: "0", Categories: []domain.Category{{ID: 5, Name: "Stalls", Price: 150000}}},
	},
}

var tariffs = []domain.Tariff{
	{ID: 31, Name: "Adult", Price: 200000},
	{ID: 32, Name: "Child", Price: 90000},
}

func newAdapter(t *testing.T) (*Adapter, *fakeWidget, *cart.Store) {
	t.Helper()

	w := &fakeWidget{seats: map[int64]bool{101: true, 102: true}}
	store := cart.New(clock.Fake(time.Unix(0, 0)))
	a := NewAdapter(w, store, nil)
	require.NoError(t, a.Mount(testEvent, "<svg/>"))

	return a, w, store
}

func TestAdapter_MountFailureIsTerminal(t *testing.T) {
	w := &fakeWidget{mountErr: errors.New("bad schema")}
	a := NewAdapter(w, cart.New(nil), nil)

	err := a.Mount(testEvent, "junk")
	require.Error(t, err)

	st, cause := a.Status()
	assert.Equal(t, StatusError, st)
	assert.EqualError(t, cause, "bad schema")

	err = a.Handle(Event{Kind: EventHover, Seat: domain.Seat{SeatID: 101}})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, w.calls)
}

func TestAdapter_Hover(t *testing.T) {
	tests := []struct {
		name        string
		seat        domain.Seat
		wantCalls   []call
		wantPending bool
	}{
		{
			name:      "no tariffs clicks at once",
			seat:      domain.Seat{SeatID: 101, State: domain.SeatAvailable},
			wantCalls: []call{{op: "click", seatID: 101}},
		},
		{
			name:      "selected seat with tariffs clicks at once",
			seat:      domain.Seat{SeatID: 101, State: domain.SeatSelected, Tariffs: tariffs},
			wantCalls: []call{{op: "click", seatID: 101}},
		},
		{
			name:      "sold seat clicks at once",
			seat:      domain.Seat{SeatID: 102, State: domain.SeatSold, Tariffs: tariffs},
			wantCalls: []call{{op: "click", seatID: 102}},
		},
		{
			name:        "tariffs wait for a choice",
			seat:        domain.Seat{SeatID: 101, State: domain.SeatAvailable, Tariffs: tariffs},
			wantPending: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, w, _ := newAdapter(t)

			require.NoError(t, a.Handle(Event{Kind: EventHover, Seat: tt.seat}))

			assert.Equal(t, tt.wantCalls, w.calls)
			_, pending := a.Pending()
			assert.Equal(t, tt.wantPending, pending)
		})
	}
}

func TestAdapter_ChooseTariff(t *testing.T) {
	a, w, _ := newAdapter(t)

	seat := domain.Seat{SeatID: 101, State: domain.SeatAvailable, Tariffs: tariffs}
	require.NoError(t, a.Handle(Event{Kind: EventHover, Seat: seat}))

	assert.ErrorIs(t, a.ChooseTariff(99), ErrTariffNotFound)

	require.NoError(t, a.ChooseTariff(32))
	assert.Equal(t, []call{{op: "click", seatID: 101, tariffID: 32}, {op: "away"}}, w.calls)

	_, pending := a.Pending()
	assert.False(t, pending)
	assert.ErrorIs(t, a.ChooseTariff(32), ErrNoPendingSeat)
}

func TestAdapter_CancelTariff(t *testing.T) {
	a, w, _ := newAdapter(t)

	seat := domain.Seat{SeatID: 101, State: domain.SeatAvailable, Tariffs: tariffs}
	require.NoError(t, a.Handle(Event{Kind: EventHover, Seat: seat}))

	a.CancelTariff()

	_, pending := a.Pending()
	assert.False(t, pending)
	assert.Equal(t, []call{{op: "away"}}, w.calls)
}

func TestAdapter_ReservePrice(t *testing.T) {
	tests := []struct {
		name       string
		seat       domain.Seat
		wantPrice  int64
		wantTariff int64
	}{
		{
			name:      "base price",
			seat:      domain.Seat{SeatID: 101, CategoryID: 5, BasePrice: 120000},
			wantPrice: 120000,
		},
		{
			name:       "tariff overrides base",
			seat:       domain.Seat{SeatID: 101, CategoryID: 5, BasePrice: 120000, Tariffs: tariffs, TariffID: 32},
			wantPrice:  90000,
			wantTariff: 32,
		},
		{
			name:      "unknown tariff keeps base",
			seat:      domain.Seat{SeatID: 101, CategoryID: 5, BasePrice: 120000, Tariffs: tariffs, TariffID: 99},
			wantPrice: 120000,
		},
		{
			name:      "missing base falls back to category",
			seat:      domain.Seat{SeatID: 101, CategoryID: 5},
			wantPrice: 150000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, w, store := newAdapter(t)

			require.NoError(t, a.Handle(Event{Kind: EventReserve, Seat: tt.seat}))

			it, ok := store.Item(domain.SeatKey(101))
			require.True(t, ok)
			assert.Equal(t, tt.wantPrice, it.Price)
			assert.Equal(t, tt.wantTariff, it.TariffID)
			assert.Equal(t, 1, it.Quantity)
			assert.Equal(t, domain.ItemSeat, it.Kind)
			assert.Equal(t, int64(77), it.EventID)
			assert.Equal(t, "0", it.LimitGroupID)
			assert.Equal(t, []call{{op: "loaded", seatID: 101, reserved: true}}, w.calls)
		})
	}
}

func TestAdapter_ReserveTwiceKeepsOneSeat(t *testing.T) {
	a, _, store := newAdapter(t)

	seat := domain.Seat{SeatID: 101, Row: "3", Number: "14", Sector: "A", BasePrice: 100}
	require.NoError(t, a.Handle(Event{Kind: EventReserve, Seat: seat}))
	require.NoError(t, a.Handle(Event{Kind: EventReserve, Seat: seat}))

	it, ok := store.Item("101")
	require.True(t, ok)
	assert.Equal(t, 1, it.Quantity)
	assert.Equal(t, "3 ряд, 14 место", it.Name)
	assert.Equal(t, "Сектор A", it.SubHeading)
}

func TestAdapter_Unreserve(t *testing.T) {
	a, w, store := newAdapter(t)

	seat := domain.Seat{SeatID: 101, BasePrice: 100}
	require.NoError(t, a.Handle(Event{Kind: EventReserve, Seat: seat}))
	require.NoError(t, a.Handle(Event{Kind: EventUnreserve, Seat: seat}))

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, call{op: "loaded", seatID: 101, reserved: false}, w.calls[len(w.calls)-1])
}

func TestAdapter_ReserveOffChart(t *testing.T) {
	a, w, store := newAdapter(t)

	err := a.Handle(Event{Kind: EventReserve, Seat: domain.Seat{SeatID: 999}})
	assert.ErrorIs(t, err, ErrSeatNotOnChart)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, w.calls)
}

func TestAdapter_Release(t *testing.T) {
	a, w, store := newAdapter(t)

	store.IncreaseItem(domain.CartItem{Key: "101", Kind: domain.ItemSeat, ID: 101})
	store.IncreaseItem(domain.CartItem{Key: "555", Kind: domain.ItemSeat, ID: 555})

	a.Release(101)
	assert.Equal(t, []call{{op: "click", seatID: 101}}, w.calls)
	assert.True(t, store.Snapshot().Has("101"), "chart seat leaves the cart on unreserve")

	a.Release(555)
	assert.False(t, store.Snapshot().Has("555"))
	assert.Len(t, w.calls, 1)
}

func TestAdapter_UnknownEvent(t *testing.T) {
	a, _, _ := newAdapter(t)

	err := a.Handle(Event{Kind: "drag", Seat: domain.Seat{SeatID: 101}})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
