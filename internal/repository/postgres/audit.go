package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/tixfront/internal/domain"
)

type AuditRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AuditRepo) With(db DB) *AuditRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AuditRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AuditRepo) Insert(ctx context.Context, e domain.AuditEntry) error {
	const op = "postgresrepo.AuditRepo.Insert"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO audit_log (id, session_id, kind, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.SessionID, e.Kind, e.Payload, e.CreatedAt,
	)

	return wrapDBErr(op, err)
}
