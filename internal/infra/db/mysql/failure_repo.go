package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bryanwahyu/sonifier/internal/domain/failures"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *failures.Failure) error {
	const q = `
INSERT INTO sonification_failures
  (tenant_id, sonification_id, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?)
`
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.TenantID), stringOrDash(f.SonificationID), stringOrDash(string(f.Phase)),
		msg, failures.NormalizeDetails(f.DetailsJSON), created,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) ListBySonification(ctx context.Context, tenant, sonificationID string, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, sonification_id, phase, message, details_json, created_at
FROM sonification_failures
WHERE tenant_id = ? AND sonification_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, sonificationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*failures.Failure{}
	for rows.Next() {
		var f failures.Failure
		if err := rows.Scan(&f.ID, &f.TenantID, &f.SonificationID, &f.Phase, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
