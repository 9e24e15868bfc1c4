package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/tixfront/internal/domain"
)

type ReceiptRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReceiptRepo) With(db DB) *ReceiptRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReceiptRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Insert journals a placed order.
//
// Parameters:
//   - ctx: request-scoped context.
//   - rc: the receipt; rc.OrderID is unique.
//
// Returns:
//   - error: repository.ErrConflict if the order is already journaled.
func (r *ReceiptRepo) Insert(ctx context.Context, rc domain.Receipt) error {
	const op = "postgresrepo.ReceiptRepo.Insert"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO order_receipts
		   (id, session_id, order_id, sum_minor, currency, full_name, phone, payment_url, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rc.ID, rc.SessionID, rc.OrderID, rc.Sum, rc.Currency,
		rc.Name, rc.Phone, rc.PaymentURL, int(rc.Status), rc.CreatedAt,
	)

	return wrapDBErr(op, err)
}

// GetByOrder returns the receipt of an order placed by the session.
//
// Returns:
//   - domain.Receipt: the journaled receipt.
//   - error: repository.ErrNotFound if the session has no such order.
func (r *ReceiptRepo) GetByOrder(ctx context.Context, sessionID string, orderID int64) (domain.Receipt, error) {
	const op = "postgresrepo.ReceiptRepo.GetByOrder"

	var (
		rc     domain.Receipt
		status int
	)
	err := r.handle().QueryRow(ctx,
		`SELECT id, session_id, order_id, sum_minor, currency, full_name, phone, payment_url, status, created_at
		   FROM order_receipts
		  WHERE session_id = $1 AND order_id = $2`,
		sessionID, orderID,
	).Scan(&rc.ID, &rc.SessionID, &rc.OrderID, &rc.Sum, &rc.Currency,
		&rc.Name, &rc.Phone, &rc.PaymentURL, &status, &rc.CreatedAt)
	if err != nil {
		return domain.Receipt{}, wrapDBErr(op, err)
	}

	rc.Status = domain.OrderStatus(status)

	return rc, nil
}
