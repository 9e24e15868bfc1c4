package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/kirinyoku/tixfront/internal/repository"
	"github.com/kirinyoku/tixfront/internal/upstream"
	"github.com/kirinyoku/tixfront/internal/validate"
)

// Upstream is the part of the ticketing API that manages placed orders.
type Upstream interface {
	GetOrders(ctx context.Context) ([]upstream.Order, error)
	GetTicketsByOrder(ctx context.Context, orderID int64) (upstream.OrderTickets, error)
	Refund(ctx context.Context, r upstream.RefundRequest) error
	DeleteOrder(ctx context.Context, orderID int64) error
}

type Receipts interface {
	GetByOrder(ctx context.Context, sessionID string, orderID int64) (domain.Receipt, error)
}

// Service is the order history of one storefront session.
type Service struct {
	sessionID string
	api       Upstream
	receipts  Receipts
	logger    *slog.Logger
}

func New(sessionID string, api Upstream, receipts Receipts, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessionID: sessionID,
		api:       api,
		receipts:  receipts,
		logger:    logger,
	}
}

func (s *Service) List(ctx context.Context) ([]upstream.Order, error) {
	const op = "service.orders.List"

	list, err := s.api.GetOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return list, nil
}

func (s *Service) Tickets(ctx context.Context, orderID int64) (upstream.OrderTickets, error) {
	const op = "service.orders.Tickets"

	if orderID <= 0 {
		return upstream.OrderTickets{}, fmt.Errorf("%s:%w", op, ErrInvalidOrderID)
	}

	t, err := s.api.GetTicketsByOrder(ctx, orderID)
	if err != nil {
		return upstream.OrderTickets{}, fmt.Errorf("%s:%w", op, err)
	}

	return t, nil
}

// Refund reasons the upstream accepts.
const (
	ReasonIllness  = "1"
	ReasonWithin7  = "2"
	ReasonWithin14 = "3"
)

type RefundInput struct {
	OrderID int64
	Name    string
	Email   string
	Phone   string
	Reason  string
}

// Refund asks the upstream to refund an order.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: the order, the buyer's contact data and a refund reason.
//
// Every field is required; the email and phone must be well-formed and the
// reason one of the Reason constants.
//
// Returns:
//   - error: orders.ErrInvalidRefund for a malformed request, or
//     *upstream.APIError.
func (s *Service) Refund(ctx context.Context, in RefundInput) error {
	const op = "service.orders.Refund"

	if err := in.validate(); err != nil {
		return fmt.Errorf("%s:%w: %s", op, ErrInvalidRefund, err)
	}

	err := s.api.Refund(ctx, upstream.RefundRequest{
		OrderID: strconv.FormatInt(in.OrderID, 10),
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Reason:  in.Reason,
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("refund requested", "order_id", in.OrderID, "reason", in.Reason)

	return nil
}

func (in RefundInput) validate() error {
	switch {
	case in.OrderID <= 0:
		return errors.New("order id")
	case strings.TrimSpace(in.Name) == "":
		return errors.New("name")
	case !validate.Email(in.Email):
		return errors.New("email")
	case !validate.Phone(in.Phone):
		return errors.New("phone")
	}

	switch in.Reason {
	case ReasonIllness, ReasonWithin7, ReasonWithin14:
		return nil
	default:
		return errors.New("reason")
	}
}

// Delete drops an unpaid order.
func (s *Service) Delete(ctx context.Context, orderID int64) error {
	const op = "service.orders.Delete"

	if orderID <= 0 {
		return fmt.Errorf("%s:%w", op, ErrInvalidOrderID)
	}

	if err := s.api.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Receipt reads the locally journaled record of an order this session
// placed.
//
// Parameters:
//   - ctx: request-scoped context.
//   - orderID: upstream order id.
//
// Returns:
//   - domain.Receipt: the journaled receipt.
//   - error: orders.ErrReceiptNotFound if this session placed no such order.
func (s *Service) Receipt(ctx context.Context, orderID int64) (domain.Receipt, error) {
	const op = "service.orders.Receipt"

	if s.receipts == nil {
		return domain.Receipt{}, fmt.Errorf("%s:%w", op, ErrReceiptNotFound)
	}

	r, err := s.receipts.GetByOrder(ctx, s.sessionID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Receipt{}, fmt.Errorf("%s:%w", op, ErrReceiptNotFound)
		}

		return domain.Receipt{}, fmt.Errorf("%s:%w", op, err)
	}

	return r, nil
}

// IsAdvisory reports whether err should be shown inline.
func IsAdvisory(err error) bool {
	if errors.Is(err, ErrInvalidRefund) {
		return true
	}
	return upstream.Classify(err) == upstream.KindAdvisory
}
