// Package session keeps the per-browser storefront state: cart,
// reservation screen, seat map, checkout and order history.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/clock"
	"github.com/kirinyoku/tixfront/internal/seatmap"
	"github.com/kirinyoku/tixfront/internal/service/checkout"
	"github.com/kirinyoku/tixfront/internal/service/orders"
	"github.com/kirinyoku/tixfront/internal/service/reservation"
)

// Upstream is the ticketing API bound to one session's api key.
type Upstream interface {
	reservation.Upstream
	checkout.Upstream
	orders.Upstream
	SetToken(ctx context.Context, token string) error
}

// Dialer binds the ticketing API to a session.
type Dialer func(sessionID string) Upstream

type Publisher interface {
	PublishEventChanged(ctx context.Context, actionID, eventID int64, reason string) error
}

// Journal records placed orders and reads them back.
type Journal interface {
	checkout.Journal
	orders.Receipts
}

type Config struct {
	IdleTTL         time.Duration
	JanitorInterval time.Duration
	Reservation     reservation.Config
	Checkout        checkout.Config
}

type Deps struct {
	Limiter   reservation.Limiter
	Publisher Publisher
	Journal   Journal
	Clock     clock.Clock
	Logger    *slog.Logger
}

type Registry struct {
	dial   Dialer
	deps   Deps
	cfg    Config
	clk    clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(dial Dialer, deps Deps, cfg Config) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = time.Minute
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Registry{
		dial:     dial,
		deps:     deps,
		cfg:      cfg,
		clk:      deps.Clock,
		logger:   deps.Logger,
		sessions: map[string]*Session{},
	}
}

// Acquire returns the session named by id.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: session id sent by the browser; an empty or malformed id starts
//     a new session under a fresh id.
//   - token: upstream api key the browser brought along, stored when the
//     session is first seen.
//
// Returns:
//   - *Session: the live session, its idle timer reset.
//   - error: if the api key could not be stored.
func (r *Registry) Acquire(ctx context.Context, id, token string) (*Session, error) {
	const op = "session.Registry.Acquire"

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = r.build(id)
		r.sessions[id] = s
	}
	s.touch(r.clk.Now())
	r.mu.Unlock()

	if !ok {
		r.logger.Info("session started", "session_id", id)

		if token != "" {
			if err := s.api.SetToken(ctx, token); err != nil {
				return nil, fmt.Errorf("%s:%w", op, err)
			}
		}
	}

	return s, nil
}

func (r *Registry) build(id string) *Session {
	api := r.dial(id)
	store := cart.New(r.clk)
	logger := r.logger.With("session_id", id)
	widget := seatmap.NewOutbox()

	return &Session{
		ID:   id,
		Cart: store,
		Reservation: reservation.New(id, api, store, reservation.Deps{
			Limiter:   r.deps.Limiter,
			Publisher: r.deps.Publisher,
			Logger:    logger,
		}, r.cfg.Reservation),
		SeatMap: seatmap.NewAdapter(widget, store, logger),
		Checkout: checkout.New(id, api, store, checkout.Deps{
			Journal:   r.deps.Journal,
			Publisher: r.deps.Publisher,
			Clock:     r.clk,
			Logger:    logger,
		}, r.cfg.Checkout),
		Orders: orders.New(id, api, r.deps.Journal, logger),
		api:    api,
		widget: widget,
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict drops sessions idle for longer than the idle TTL and disposes
// their timers. It returns how many were dropped.
func (r *Registry) Evict() int {
	cutoff := r.clk.Now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
		r.logger.Info("session evicted", "session_id", s.ID)
	}

	return len(idle)
}

// Run evicts idle sessions until ctx is done, then closes every session.
func (r *Registry) Run(ctx context.Context) error {
	t := r.clk.NewTicker(r.cfg.JanitorInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case <-t.C:
			if n := r.Evict(); n > 0 {
				r.logger.Debug("janitor pass", "evicted", n, "live", r.Len())
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
