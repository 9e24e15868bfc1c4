package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/domain"
	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
	"github.com/kirinyoku/tixfront/internal/upstream"
	"github.com/kirinyoku/tixfront/internal/validate"
)

// Upstream is the part of the ticketing API the reservation screen needs.
type Upstream interface {
	GetAction(ctx context.Context, ref upstream.ActionRef) (domain.Action, error)
	GetSchema(ctx context.Context, eventID int64) (string, error)
	Reserve(ctx context.Context, req domain.ReserveRequest) (domain.Hold, error)
	UnreserveAll(ctx context.Context, eventID int64) error
	Auth(ctx context.Context, email string) error
}

type Limiter interface {
	AllowCommit(ctx context.Context, sessionID string) (redisrepo.CommitAllowance, error)
}

type Publisher interface {
	PublishEventChanged(ctx context.Context, actionID, eventID int64, reason string) error
}

type Config struct {
	// CleanupTimeout bounds the best-effort release issued after a stale
	// commit.
	CleanupTimeout time.Duration
}

type Deps struct {
	Limiter   Limiter
	Publisher Publisher
	Logger    *slog.Logger
}

// Service is the reservation screen of one storefront session: the open
// event, the tariff draft, and the reconciliation of the cart with the
// server's holds.
type Service struct {
	sessionID string
	api       Upstream
	cart      *cart.Store
	limiter   Limiter
	pub       Publisher
	logger    *slog.Logger
	cfg       Config

	committing atomic.Bool

	mu    sync.Mutex
	event *domain.Event
	draft *tariffDraft

	// pending is set while a commit waits for sign-in. pendingGen is the
	// cart generation that commit was built from.
	pending    bool
	pendingGen uint64
}

func New(sessionID string, api Upstream, store *cart.Store, deps Deps, cfg Config) *Service {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 10 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		sessionID: sessionID,
		api:       api,
		cart:      store,
		limiter:   deps.Limiter,
		pub:       deps.Publisher,
		logger:    logger.With("session_id", sessionID),
		cfg:       cfg,
	}
}

type OpenRequest struct {
	ActionID string
	VenueID  string
	CityID   string
	EventID  int64
}

// Opened is the result of entering an event.
type Opened struct {
	Event     domain.Event
	Schema    string
	SchemaErr error
}

// Open enters an event: Fetch, ReleaseForeign and Enter in a row.
//
// Parameters:
//   - ctx: request-scoped context.
//   - req: action, venue and city the event is listed under, and the event.
//
// Cart items left over from other events are purged. Authenticated sessions
// also release their server holds first. A seat schema failure does not fail
// the call; it is reported in Opened.SchemaErr.
//
// Returns:
//   - Opened: the event and, when it has a seat map, its SVG schema.
//   - error: reservation.ErrEventNotFound if the action has no such event.
func (s *Service) Open(ctx context.Context, req OpenRequest) (Opened, error) {
	opened, err := s.Fetch(ctx, req)
	if err != nil {
		return Opened{}, err
	}

	s.ReleaseForeign(ctx, opened.Event.ID)
	s.Enter(opened.Event)

	return opened, nil
}

// Fetch loads the event and its seat schema without touching session
// state.
func (s *Service) Fetch(ctx context.Context, req OpenRequest) (Opened, error) {
	const op = "service.reservation.Fetch"

	action, err := s.api.GetAction(ctx, upstream.ActionRef{
		ActionID: req.ActionID,
		VenueID:  req.VenueID,
		CityID:   req.CityID,
	})
	if err != nil {
		return Opened{}, fmt.Errorf("%s:%w", op, err)
	}

	ev, ok := action.Events[req.EventID]
	if !ok {
		return Opened{}, fmt.Errorf("%s:%w", op, ErrEventNotFound)
	}

	out := Opened{Event: ev}
	if ev.HasSeatMap() {
		out.Schema, out.SchemaErr = s.api.GetSchema(ctx, ev.ID)
	}

	return out, nil
}

// ReleaseForeign drops the server holds of an authenticated session whose
// cart still carries items of events other than eventID. Failures are
// logged only.
func (s *Service) ReleaseForeign(ctx context.Context, eventID int64) {
	if !s.cart.Snapshot().ForeignEvents(eventID) || s.cart.AuthStatus() != domain.AuthAuthenticated {
		return
	}

	if err := s.api.UnreserveAll(ctx, 0); err != nil {
		s.logger.Warn("release of other events' holds failed", "event_id", eventID, "error", err)
	}
}

// Enter makes ev the open event, purging cart items of other events.
func (s *Service) Enter(ev domain.Event) {
	if s.cart.Snapshot().ForeignEvents(ev.ID) {
		s.cart.RemoveItems()
		s.logger.Info("purged cart items of other events", "event_id", ev.ID)
	}

	s.mu.Lock()
	s.event = &ev
	s.draft = nil
	s.mu.Unlock()
}

// Schema returns the seat-map SVG of the open event.
func (s *Service) Schema(ctx context.Context) (string, error) {
	const op = "service.reservation.Schema"

	ev, err := s.Event()
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	if !ev.HasSeatMap() {
		return "", fmt.Errorf("%s:%w", op, ErrNoSeatMap)
	}

	svg, err := s.api.GetSchema(ctx, ev.ID)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return svg, nil
}

// Event returns the currently open event.
func (s *Service) Event() (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.event == nil {
		return domain.Event{}, ErrNotOpened
	}
	return *s.event, nil
}

func (s *Service) category(categoryID int64) (domain.Event, domain.Category, domain.LimitGroup, error) {
	ev, err := s.Event()
	if err != nil {
		return ev, domain.Category{}, domain.LimitGroup{}, err
	}

	cat, group, ok := ev.Category(categoryID)
	if !ok {
		return ev, cat, group, ErrCategoryNotFound
	}

	return ev, cat, group, nil
}

// IncreaseCategory adds one unit of a category sold without tariffs.
//
// Returns:
//   - error: reservation.ErrTariffRequired if the category is sold by tariff.
//   - error: reservation.ErrNothingSelectable if nothing more can be added.
func (s *Service) IncreaseCategory(categoryID int64) error {
	const op = "service.reservation.IncreaseCategory"

	ev, cat, group, err := s.category(categoryID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if len(cat.Tariffs) > 0 {
		return fmt.Errorf("%s:%w", op, ErrTariffRequired)
	}

	if Selectable(ev.ID, cat, group, 0, s.cart.Snapshot()) == 0 {
		return fmt.Errorf("%s:%w", op, ErrNothingSelectable)
	}

	s.cart.IncreaseItem(categoryItem(ev, cat, nil, 0))

	return nil
}

func (s *Service) DecreaseCategory(categoryID int64) error {
	const op = "service.reservation.DecreaseCategory"

	_, cat, _, err := s.category(categoryID)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if len(cat.Tariffs) > 0 {
		return fmt.Errorf("%s:%w", op, ErrTariffRequired)
	}

	s.cart.DecreaseItem(domain.CategoryKey(cat.ID, 0))

	return nil
}

func categoryItem(ev domain.Event, cat domain.Category, t *domain.Tariff, qty int) domain.CartItem {
	it := domain.CartItem{
		Key:          domain.CategoryKey(cat.ID, 0),
		Kind:         domain.ItemCategory,
		ID:           cat.ID,
		EventID:      ev.ID,
		Name:         cat.Name,
		Price:        cat.Price,
		Quantity:     qty,
		LimitGroupID: cat.LimitGroupID,
		Event:        ev.Snapshot(),
	}

	if t != nil {
		it.Key = domain.CategoryKey(cat.ID, t.ID)
		it.TariffID = t.ID
		it.TariffName = t.Name
		it.Price = t.Price
	}

	return it
}

// Commit pushes the cart to the server: every hold of the session is
// released, then the current cart is reserved.
//
// Parameters:
//   - ctx: request-scoped context.
//
// The cart is never modified here. When the server asks for
// authentication the request is kept and replayed by Authenticate.
//
// Returns:
//   - domain.Hold: what the server now holds and for how long.
//   - error: reservation.ErrCommitInProgress if another commit is running.
//   - error: reservation.RateLimitedError if the session commits too often.
//   - error: reservation.ErrAuthRequired if the user must sign in first.
//   - error: reservation.ErrStaleCommit if the cart was cleared meanwhile.
//   - error: *upstream.APIError for any other upstream failure.
func (s *Service) Commit(ctx context.Context) (domain.Hold, error) {
	const op = "service.reservation.Commit"

	ev, err := s.Event()
	if err != nil {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
	}

	snap := s.cart.Snapshot()

	req := snap.ReserveRequest(ev.ID)
	if req.Empty() {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, ErrEmptyCart)
	}

	return s.commit(ctx, ev, req, snap.Generation)
}

func (s *Service) commit(ctx context.Context, ev domain.Event, req domain.ReserveRequest, gen uint64) (domain.Hold, error) {
	const op = "service.reservation.Commit"

	if !s.committing.CompareAndSwap(false, true) {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, ErrCommitInProgress)
	}
	defer s.committing.Store(false)

	if s.limiter != nil {
		a, err := s.limiter.AllowCommit(ctx, s.sessionID)
		if err != nil {
			return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
		}
		if !a.Allowed {
			s.logger.Warn("commit rate limited", "attempts", a.Attempts, "retry_after", a.RetryAfter)
			return domain.Hold{}, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: a.RetryAfter})
		}
	}

	if err := s.api.UnreserveAll(ctx, 0); err != nil {
		return domain.Hold{}, s.commitFailed(op, req, gen, err)
	}

	hold, err := s.api.Reserve(ctx, req)
	if err != nil {
		return domain.Hold{}, s.commitFailed(op, req, gen, err)
	}

	if s.cart.Generation() != gen {
		s.logger.Warn("discarding commit of a cleared cart", "event_id", ev.ID)
		s.releaseDetached()
		return domain.Hold{}, fmt.Errorf("%s:%w", op, ErrStaleCommit)
	}

	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()

	s.cart.SetAuthStatus(domain.AuthAuthenticated)

	if s.pub != nil {
		if err := s.pub.PublishEventChanged(ctx, ev.ActionID, ev.ID, "reserved"); err != nil {
			s.logger.Warn("publish availability change failed", "event_id", ev.ID, "error", err)
		}
	}

	s.logger.Info("cart committed",
		"event_id", ev.ID,
		"categories", len(req.Categories),
		"seats", len(req.Seats),
		"timeout_s", hold.TimeoutSeconds,
	)

	return hold, nil
}

func (s *Service) commitFailed(op string, req domain.ReserveRequest, gen uint64, err error) error {
	if upstream.Classify(err) != upstream.KindAuthRequired {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.mu.Lock()
	s.pending = true
	s.pendingGen = gen
	s.mu.Unlock()

	s.cart.SetAuthStatus(domain.AuthNotAuthenticated)
	s.logger.Info("commit suspended until authentication", "event_id", req.EventID)

	return fmt.Errorf("%s:%w: %w", op, ErrAuthRequired, err)
}

// releaseDetached drops server holds outside of the request lifetime.
func (s *Service) releaseDetached() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CleanupTimeout)
	defer cancel()

	if err := s.api.UnreserveAll(ctx, 0); err != nil {
		s.logger.Warn("best-effort release failed", "error", err)
	}
}

// Pending reports whether a commit is waiting for authentication.
func (s *Service) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Authenticate signs the session in by email.
//
// Parameters:
//   - ctx: request-scoped context.
//   - email: address the upstream sends its sign-in confirmation to.
//
// A commit suspended for authentication is replayed exactly once. The
// replay reserves the cart as it is now, so edits made while the user was
// signing in are honoured. A cart cleared in the meantime is not replayed.
//
// Returns:
//   - domain.Hold: result of the replayed commit, if any.
//   - bool: whether a suspended commit was replayed.
//   - error: reservation.ErrInvalidEmail for a malformed address.
//   - error: reservation.ErrStaleCommit if the cart was cleared during sign-in.
//   - error: any error of the replayed commit.
func (s *Service) Authenticate(ctx context.Context, email string) (domain.Hold, bool, error) {
	const op = "service.reservation.Authenticate"

	if !validate.Email(email) {
		return domain.Hold{}, false, fmt.Errorf("%s:%w", op, ErrInvalidEmail)
	}

	if err := s.api.Auth(ctx, email); err != nil {
		return domain.Hold{}, false, fmt.Errorf("%s:%w", op, err)
	}

	s.cart.SetAuthStatus(domain.AuthAuthenticated)

	s.mu.Lock()
	pending, pendingGen := s.pending, s.pendingGen
	s.pending = false
	ev := s.event
	s.mu.Unlock()

	if !pending || ev == nil {
		return domain.Hold{}, false, nil
	}

	snap := s.cart.Snapshot()
	if snap.Generation != pendingGen {
		s.logger.Info("dropping suspended commit of a cleared cart", "event_id", ev.ID)
		return domain.Hold{}, false, fmt.Errorf("%s:%w", op, ErrStaleCommit)
	}

	req := snap.ReserveRequest(ev.ID)
	if req.Empty() {
		s.logger.Info("dropping suspended commit of an emptied cart", "event_id", ev.ID)
		return domain.Hold{}, false, nil
	}

	s.logger.Info("replaying suspended commit", "event_id", ev.ID)

	hold, err := s.commit(ctx, *ev, req, snap.Generation)
	if err != nil {
		return domain.Hold{}, true, err
	}

	return hold, true, nil
}

// RemoveItem drops a category line from the summary list.
func (s *Service) RemoveItem(key string) error {
	const op = "service.reservation.RemoveItem"

	it, ok := s.cart.Item(key)
	if !ok {
		return nil
	}
	if it.Kind != domain.ItemCategory {
		return fmt.Errorf("%s: %s is not a category item", op, key)
	}

	s.cart.RemoveItems(key)

	return nil
}

// IsAdvisory reports whether err should be shown inline rather than as a
// failure of the screen.
func IsAdvisory(err error) bool {
	switch {
	case errors.Is(err, ErrNothingSelectable),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidEmail):
		return true
	}
	return upstream.Classify(err) == upstream.KindAdvisory
}
