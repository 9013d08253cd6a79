package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
)

var _ repository.ToolRepository = (*toolRepo)(nil)

type toolRepo struct {
	pool *pgxpool.Pool
}

func NewToolRepo(pool *pgxpool.Pool) *toolRepo {
	return &toolRepo{pool: pool}
}

func (r *toolRepo) Save(ctx context.Context, tx repository.Tx, t *model.DailyTool) error {
	t.UpdatedAt = time.Now()

	const q = `
INSERT INTO daily_tools (id, owner_id, title, content, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.OwnerID, t.Title, t.Content, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *toolRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.DailyTool, error) {
	const q = `
SELECT id, owner_id, title, content, status, created_at, updated_at
FROM daily_tools
WHERE id = $1 AND owner_id = $2`

	row, err := pickRow(ctx, r.pool, tx, q, id, ownerID)
	if err != nil {
		return nil, err
	}
	return scanTool(row)
}

func (r *toolRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DailyTool, error) {
	const q = `
SELECT id, owner_id, title, content, status, created_at, updated_at
FROM daily_tools
WHERE id = $1`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTool(row)
}

func scanTool(row pgx.Row) (*model.DailyTool, error) {
	var t model.DailyTool
	var statusStr string
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Content, &statusStr, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	t.Status = model.ToolStatus(statusStr)
	return &t, nil
}

// Fill only lands on a pending tool; a late or duplicate fill can neither
// resurrect a terminal tool nor overwrite an earlier result.
func (r *toolRepo) Fill(ctx context.Context, tx repository.Tx, id, content string, status model.ToolStatus) error {
	const q = `
UPDATE daily_tools SET content = $2, status = $3, updated_at = now()
WHERE id = $1 AND status = 'pending'`

	tag, err := execSQL(ctx, r.pool, tx, q, id, content, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
