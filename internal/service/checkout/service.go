package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/clock"
	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/kirinyoku/tixfront/internal/upstream"
	"github.com/kirinyoku/tixfront/internal/validate"
)

// Upstream is the part of the ticketing API the checkout screen needs.
type Upstream interface {
	GetCart(ctx context.Context) (domain.ServerCart, error)
	Unreserve(ctx context.Context, seatIDs ...int64) (domain.Hold, error)
	UnreserveAll(ctx context.Context, eventID int64) error
	CreateOrder(ctx context.Context, d domain.OrderDraft) (domain.PlacedOrder, error)
}

// Journal keeps a local record of placed orders.
type Journal interface {
	RecordOrder(ctx context.Context, r domain.Receipt, held domain.ServerCart) error
}

type Publisher interface {
	PublishEventChanged(ctx context.Context, actionID, eventID int64, reason string) error
}

type Config struct {
	// CleanupTimeout bounds the release issued when the hold expires.
	CleanupTimeout time.Duration
}

type Deps struct {
	Journal   Journal
	Publisher Publisher
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Service is the checkout screen of one storefront session: the server
// cart, its hold countdown and order placement.
type Service struct {
	sessionID string
	api       Upstream
	cart      *cart.Store
	journal   Journal
	pub       Publisher
	clk       clock.Clock
	logger    *slog.Logger
	cfg       Config

	countdown *Countdown

	mu   sync.Mutex
	last *domain.ServerCart
}

func New(sessionID string, api Upstream, store *cart.Store, deps Deps, cfg Config) *Service {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 10 * time.Second
	}

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		sessionID: sessionID,
		api:       api,
		cart:      store,
		journal:   deps.Journal,
		pub:       deps.Publisher,
		clk:       clk,
		logger:    logger,
		cfg:       cfg,
	}
	s.countdown = NewCountdown(clk, s.expire)

	return s
}

// View is the checkout screen.
type View struct {
	Cart       domain.ServerCart `json:"cart"`
	OrderTotal int64             `json:"order_total"`
	Cashback   int64             `json:"cashback"`
	Timer      Timer             `json:"timer"`
}

// Load fetches the server cart and reseeds the countdown from it.
//
// Parameters:
//   - ctx: request-scoped context.
//
// An empty server cart leaves the countdown inactive. Once the hold has
// expired the screen stays expired until Close.
//
// Returns:
//   - View: the server cart with its totals and the countdown reading.
//   - error: checkout.ErrCartExpired after expiry.
//   - error: *upstream.APIError if the cart could not be fetched.
func (s *Service) Load(ctx context.Context) (View, error) {
	const op = "service.checkout.Load"

	if s.countdown.Timer().State == StateExpired {
		return View{}, fmt.Errorf("%s:%w", op, ErrCartExpired)
	}

	c, err := s.api.GetCart(ctx)
	if err != nil {
		return View{}, fmt.Errorf("%s:%w", op, err)
	}

	s.mu.Lock()
	s.last = &c
	s.mu.Unlock()

	if c.Empty() {
		s.countdown.Start(-1)
	} else {
		s.countdown.Start(c.RemainingSeconds)
	}

	return s.view(c), nil
}

func (s *Service) Timer() Timer {
	return s.countdown.Timer()
}

// RemoveItem releases one held seat or category admission.
//
// Parameters:
//   - ctx: request-scoped context.
//   - seatID: id of the held unit as the server cart lists it.
//
// The local cart loses one unit of the matching key. When the server
// reports nothing left on hold the countdown stops without expiring.
//
// Returns:
//   - View: the refreshed checkout screen.
//   - error: checkout.ErrItemNotFound if the unit is not in the last loaded
//     cart, checkout.ErrCartExpired after expiry, or *upstream.APIError.
func (s *Service) RemoveItem(ctx context.Context, seatID int64) (View, error) {
	const op = "service.checkout.RemoveItem"

	if s.countdown.Timer().State == StateExpired {
		return View{}, fmt.Errorf("%s:%w", op, ErrCartExpired)
	}

	seat, err := s.heldSeat(seatID)
	if err != nil {
		return View{}, fmt.Errorf("%s:%w", op, err)
	}

	hold, err := s.api.Unreserve(ctx, seatID)
	if err != nil {
		return View{}, fmt.Errorf("%s:%w", op, err)
	}

	s.cart.DecreaseItem(localKey(seat))

	if len(hold.Seats) == 0 {
		s.countdown.Stop()
	}

	v, err := s.Load(ctx)
	if err != nil {
		return View{}, fmt.Errorf("%s:%w", op, err)
	}

	return v, nil
}

// localKey maps a held unit back to the cart key it was reserved from.
// Numbered units are seats; the rest are category admissions.
func localKey(seat domain.HeldSeat) string {
	if seat.Number != "" {
		return domain.SeatKey(seat.SeatID)
	}
	return domain.CategoryKey(seat.CategoryID, seat.TariffID)
}

func (s *Service) heldSeat(seatID int64) (domain.HeldSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return domain.HeldSeat{}, ErrNotLoaded
	}

	for _, e := range s.last.Events {
		for _, seat := range e.Seats {
			if seat.SeatID == seatID {
				return seat, nil
			}
		}
	}

	return domain.HeldSeat{}, ErrItemNotFound
}

type OrderInput struct {
	Name  string
	Phone string
}

// CreateOrder places an order for everything on hold.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: buyer's full name and phone, checked only when an event of the
//     cart requires them.
//
// The order sum is the server cart total. On success the countdown is
// disposed and a receipt is journaled; a journal failure is logged and
// does not fail the call, since the order already exists upstream.
//
// Returns:
//   - domain.PlacedOrder: the order and its payment form URL.
//   - error: checkout.ErrInvalidName, checkout.ErrInvalidPhone,
//     checkout.ErrEmptyCart, checkout.ErrCartExpired or *upstream.APIError.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (domain.PlacedOrder, error) {
	const op = "service.checkout.CreateOrder"

	if s.countdown.Timer().State == StateExpired {
		return domain.PlacedOrder{}, fmt.Errorf("%s:%w", op, ErrCartExpired)
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		return domain.PlacedOrder{}, fmt.Errorf("%s:%w", op, ErrNotLoaded)
	}
	held := *last
	if held.Empty() {
		return domain.PlacedOrder{}, fmt.Errorf("%s:%w", op, ErrEmptyCart)
	}

	draft := domain.OrderDraft{Sum: held.TotalSum, Currency: held.Currency}

	if held.FullNameRequired() {
		if !validate.FullName(in.Name) {
			return domain.PlacedOrder{}, fmt.Errorf("%s:%w", op, ErrInvalidName)
		}
		draft.Name = strings.TrimSpace(in.Name)
	}
	if held.PhoneRequired() {
		if !validate.Phone(in.Phone) {
			return domain.PlacedOrder{}, fmt.Errorf("%s:%w", op, ErrInvalidPhone)
		}
		draft.Phone = strings.TrimSpace(in.Phone)
	}

	order, err := s.api.CreateOrder(ctx, draft)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("%s:%w", op, err)
	}

	s.countdown.Stop()

	s.logger.Info("order placed",
		"order_id", order.OrderID,
		"sum", draft.Sum,
		"currency", draft.Currency,
		"status", order.Status.String(),
	)

	if s.journal != nil {
		r := domain.Receipt{
			ID:         uuid.New(),
			SessionID:  s.sessionID,
			OrderID:    order.OrderID,
			Sum:        draft.Sum,
			Currency:   draft.Currency,
			Name:       draft.Name,
			Phone:      draft.Phone,
			PaymentURL: order.PaymentURL,
			Status:     order.Status,
			CreatedAt:  s.clk.Now(),
		}
		if err := s.journal.RecordOrder(ctx, r, held); err != nil {
			s.logger.Error("journal order failed", "order_id", order.OrderID, "error", err)
		}
	}

	return order, nil
}

// Close disposes the countdown when the screen is left. An expired
// checkout becomes loadable again.
func (s *Service) Close() {
	s.countdown.Reset()

	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}

// expire runs once when the countdown reaches zero: the server holds are
// released best-effort and the local cart is emptied regardless.
func (s *Service) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CleanupTimeout)
	defer cancel()

	if err := s.api.UnreserveAll(ctx, 0); err != nil {
		s.logger.Warn("release of expired hold failed", "error", err)
	}

	s.cart.RemoveItems()

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if s.pub != nil && last != nil {
		for _, e := range last.Events {
			if err := s.pub.PublishEventChanged(ctx, e.ActionID, e.EventID, "expired"); err != nil {
				s.logger.Warn("publish availability change failed", "event_id", e.EventID, "error", err)
			}
		}
	}

	s.logger.Info("cart hold expired")
}

func (s *Service) view(c domain.ServerCart) View {
	return View{
		Cart:       c,
		OrderTotal: c.OrderTotal(),
		Cashback:   c.Cashback(),
		Timer:      s.countdown.Timer(),
	}
}

// IsAdvisory reports whether err should be shown inline on the checkout
// screen.
func IsAdvisory(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidPhone),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrEmptyCart):
		return true
	}
	return upstream.Classify(err) == upstream.KindAdvisory
}
