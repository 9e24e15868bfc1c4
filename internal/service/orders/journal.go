package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/kirinyoku/tixfront/internal/repository"
	postgresrepo "github.com/kirinyoku/tixfront/internal/repository/postgres"
	"github.com/kirinyoku/tixfront/internal/uow"
)

const AuditOrderPlaced = "order_placed"

var ErrAlreadyJournaled = errors.New("order already journaled")

type Publisher interface {
	PublishEventChanged(ctx context.Context, actionID, eventID int64, reason string) error
}

// Journal records placed orders in Postgres: the receipt and an audit entry
// holding the server cart the order was placed from.
type Journal struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	pub    Publisher
	logger *slog.Logger
}

func NewJournal(store *postgresrepo.Store, pub Publisher, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		store:  store,
		uow:    uow.NewUoW(store),
		pub:    pub,
		logger: logger,
	}
}

type placedAudit struct {
	OrderID int64             `json:"order_id"`
	Status  string            `json:"status"`
	Cart    domain.ServerCart `json:"cart"`
}

// RecordOrder writes the receipt and its audit entry in one transaction.
// Once committed, every event of the cart is announced as changed.
//
// Parameters:
//   - ctx: request-scoped context.
//   - r: receipt of the placed order.
//   - held: server cart the order was placed from.
//
// Returns:
//   - error: orders.ErrAlreadyJournaled if the order is already recorded.
func (j *Journal) RecordOrder(ctx context.Context, r domain.Receipt, held domain.ServerCart) error {
	const op = "service.orders.Journal.RecordOrder"

	payload, err := json.Marshal(placedAudit{OrderID: r.OrderID, Status: r.Status.String(), Cart: held})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = j.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := j.store.Receipts().With(tx).Insert(ctx, r); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyJournaled
			}
			return err
		}

		entry := domain.AuditEntry{
			ID:        uuid.New(),
			SessionID: r.SessionID,
			Kind:      AuditOrderPlaced,
			Payload:   payload,
			CreatedAt: r.CreatedAt,
		}
		if err := j.store.Audit().With(tx).Insert(ctx, entry); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			if j.pub == nil {
				return
			}
			for _, e := range held.Events {
				if err := j.pub.PublishEventChanged(ctx, e.ActionID, e.EventID, "ordered"); err != nil {
					j.logger.Warn("publish availability change failed", "event_id", e.EventID, "error", err)
				}
			}
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (j *Journal) GetByOrder(ctx context.Context, sessionID string, orderID int64) (domain.Receipt, error) {
	return j.store.Receipts().GetByOrder(ctx, sessionID, orderID)
}
