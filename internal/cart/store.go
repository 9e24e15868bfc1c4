// Package cart holds the session's selected ticket line items.
package cart

import (
	"maps"
	"sort"
	"sync"

	"github.com/kirinyoku/tixfront/internal/clock"
	"github.com/kirinyoku/tixfront/internal/domain"
)

// Store owns the cart items of one session. Every mutation derives a fresh
// item map from the previous one and swaps it in, so readers holding an
// older Snapshot never observe a half-applied change.
type Store struct {
	mu         sync.RWMutex
	clk        clock.Clock
	items      map[string]domain.CartItem
	auth       domain.AuthStatus
	generation uint64
}

func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}

	return &Store{
		clk:   clk,
		items: map[string]domain.CartItem{},
		auth:  domain.AuthIdle,
	}
}

// IncreaseItem bumps the quantity of item.Key by one, or inserts it with
// quantity 1. Seats never go above 1. Callers check selectable quantity
// before calling.
func (s *Store) IncreaseItem(item domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.items)

	qty := 1
	if existing, ok := next[item.Key]; ok && item.Kind != domain.ItemSeat {
		qty = existing.Quantity + 1
	}

	item.Quantity = qty
	item.AddedAt = s.clk.Now()
	next[item.Key] = item

	s.items = next
}

// DecreaseItem lowers the quantity of key by one and deletes the entry when
// it would reach zero. Missing keys are ignored.
func (s *Store) DecreaseItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[key]
	if !ok {
		return
	}

	next := maps.Clone(s.items)
	if existing.Quantity <= 1 {
		delete(next, key)
	} else {
		existing.Quantity--
		next[key] = existing
	}

	s.items = next
}

// AddItems upserts items one by one. An item with zero quantity deletes its
// key. Each item is its own step: a reader may observe the cart between two
// of them.
func (s *Store) AddItems(items ...domain.CartItem) {
	for _, item := range items {
		s.upsert(item)
	}
}

func (s *Store) upsert(item domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.items)
	if item.Quantity <= 0 {
		delete(next, item.Key)
	} else {
		if item.Kind == domain.ItemSeat {
			item.Quantity = 1
		}
		item.AddedAt = s.clk.Now()
		next[item.Key] = item
	}

	s.items = next
}

// RemoveItems deletes the given keys. Called without keys it clears the
// whole cart and starts a new generation.
func (s *Store) RemoveItems(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		s.items = map[string]domain.CartItem{}
		s.generation++
		return
	}

	next := maps.Clone(s.items)
	for _, k := range keys {
		delete(next, k)
	}

	s.items = next
}

func (s *Store) Item(key string) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[key]
	return it, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// Snapshot returns an immutable view of the cart with its aggregates.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	items := s.items
	gen := s.generation
	s.mu.RUnlock()

	return newSnapshot(items, gen)
}

func (s *Store) AuthStatus() domain.AuthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.auth
}

func (s *Store) SetAuthStatus(st domain.AuthStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auth = st
}

// Generation changes every time the cart is cleared as a whole.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

type Snapshot struct {
	Items      []domain.CartItem `json:"items"`
	TotalCount int               `json:"total_count"`
	TotalSum   int64             `json:"total_sum"`
	Limits     map[string]int    `json:"limits"`
	Generation uint64            `json:"-"`

	byKey map[string]domain.CartItem
}

func newSnapshot(items map[string]domain.CartItem, gen uint64) Snapshot {
	snap := Snapshot{
		Items:      make([]domain.CartItem, 0, len(items)),
		Limits:     map[string]int{},
		Generation: gen,
		byKey:      items,
	}

	for _, it := range items {
		snap.Items = append(snap.Items, it)
		snap.TotalCount += it.Quantity
		snap.TotalSum += it.Price * int64(it.Quantity)
		if it.LimitGroupID != "" {
			snap.Limits[it.LimitGroupID] += it.Quantity
		}
	}

	sort.Slice(snap.Items, func(i, j int) bool {
		a, b := snap.Items[i], snap.Items[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.Key < b.Key
	})

	return snap
}

func (s Snapshot) Quantity(key string) int {
	return s.byKey[key].Quantity
}

func (s Snapshot) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// CategoryTotal sums the quantities held for a category across all of its
// tariffs within one event.
func (s Snapshot) CategoryTotal(eventID, categoryID int64) int {
	n := 0
	for _, it := range s.Items {
		if it.Kind == domain.ItemCategory && it.EventID == eventID && it.ID == categoryID {
			n += it.Quantity
		}
	}
	return n
}

// EventCount is TotalCount restricted to one event.
func (s Snapshot) EventCount(eventID int64) int {
	n := 0
	for _, it := range s.Items {
		if it.EventID == eventID {
			n += it.Quantity
		}
	}
	return n
}

// ForeignEvents reports whether any item belongs to an event other than
// eventID.
func (s Snapshot) ForeignEvents(eventID int64) bool {
	for _, it := range s.Items {
		if it.EventID != eventID {
			return true
		}
	}
	return false
}

// ReserveRequest partitions the snapshot into the reserve payload for one
// event.
func (s Snapshot) ReserveRequest(eventID int64) domain.ReserveRequest {
	req := domain.ReserveRequest{EventID: eventID}
	for _, it := range s.Items {
		if it.EventID != eventID {
			continue
		}
		switch it.Kind {
		case domain.ItemSeat:
			req.Seats = append(req.Seats, domain.SeatHold{SeatID: it.ID, TariffID: it.TariffID})
		case domain.ItemCategory:
			req.Categories = append(req.Categories, domain.CategoryHold{
				CategoryID: it.ID,
				TariffID:   it.TariffID,
				Quantity:   it.Quantity,
			})
		}
	}
	return req
}
