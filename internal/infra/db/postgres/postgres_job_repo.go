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

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, owner_id, kind, conversation_id, message_id, tool_id, payload,
status, result, last_error, queue_message_id, seen, notified_at, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var statusStr, kindStr string
	err := row.Scan(
		&j.ID, &j.OwnerID, &kindStr, &j.ConversationID, &j.MessageID, &j.ToolID, &j.Payload,
		&statusStr, &j.Result, &j.LastError, &j.QueueMessageID, &j.Seen, &j.NotifiedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(statusStr)
	j.Kind = model.JobKind(kindStr)
	return &j, nil
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO jobs (id, owner_id, kind, conversation_id, message_id, tool_id, payload,
                  status, result, last_error, queue_message_id, seen, notified_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  result = EXCLUDED.result,
  last_error = EXCLUDED.last_error,
  queue_message_id = EXCLUDED.queue_message_id,
  updated_at = EXCLUDED.updated_at
WHERE jobs.status = 'pending';`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.OwnerID, job.Kind, job.ConversationID, job.MessageID, job.ToolID, job.Payload,
		job.Status, job.Result, job.LastError, job.QueueMessageID, job.Seen, job.NotifiedAt,
		job.CreatedAt, job.UpdatedAt)
	return err
}

// RecordDispatch deliberately leaves every other column alone: by the time the
// publish returns, the worker may already have moved the job past pending.
func (r *jobRepo) RecordDispatch(ctx context.Context, id, queueMessageID string) error {
	const q = `UPDATE jobs SET queue_message_id = $2, updated_at = now() WHERE id = $1`
	_, err := execSQL(ctx, r.pool, nil, q, id, queueMessageID)
	return err
}

func (r *jobRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND owner_id = $2`
	row, err := pickRow(ctx, r.pool, tx, q, id, ownerID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// Claim is the compare-and-set guarding against duplicate queue deliveries:
// only a pending job moves to processing, and only for the caller that won.
func (r *jobRepo) Claim(ctx context.Context, id string) (*model.Job, error) {
	const q = `
UPDATE jobs SET status = 'processing', updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + jobColumns

	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Distinguish "no such job" from "already claimed or terminal".
	const probe = `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`
	row, perr := pickRow(ctx, r.pool, nil, probe, id)
	if perr != nil {
		return nil, perr
	}
	var exists bool
	if serr := row.Scan(&exists); serr != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if exists {
		return nil, domain.ErrJobNotClaimable
	}
	return nil, domain.ErrNotFound
}

// Finalize writes the terminal state and reads the seen flag in the same
// statement, so a concurrent mark-seen can never race the notification
// decision into a spurious push.
func (r *jobRepo) Finalize(ctx context.Context, id string, status model.JobStatus, result, lastError string) (bool, error) {
	const q = `
UPDATE jobs SET status = $2, result = $3, last_error = $4, updated_at = now()
WHERE id = $1 AND status = 'processing'
RETURNING seen`

	row, err := pickRow(ctx, r.pool, nil, q, id, status, result, lastError)
	if err != nil {
		return false, err
	}
	var seen bool
	if err := row.Scan(&seen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrJobNotClaimable
		}
		return false, domain.ErrReadDatabaseRow
	}
	return !seen, nil
}

func (r *jobRepo) MarkSeen(ctx context.Context, id, ownerID string) error {
	const q = `
UPDATE jobs SET seen = TRUE, updated_at = now()
WHERE id = $1 AND owner_id = $2 AND seen = FALSE`

	tag, err := execSQL(ctx, r.pool, nil, q, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Either already seen (idempotent success) or not owned / absent.
	const probe = `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1 AND owner_id = $2)`
	row, err := pickRow(ctx, r.pool, nil, probe, id, ownerID)
	if err != nil {
		return err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return domain.ErrReadDatabaseRow
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

// ClearSeen is conditional on status='processing'; once terminal the record
// stays read-only apart from mark-seen.
func (r *jobRepo) ClearSeen(ctx context.Context, id string) error {
	const q = `
UPDATE jobs SET seen = FALSE, updated_at = now()
WHERE id = $1 AND status = 'processing'`

	_, err := execSQL(ctx, r.pool, nil, q, id)
	return err
}

// ClaimUnnotified stamps notified_at on eligible jobs before returning them,
// so two concurrent fan-out sweeps claim disjoint sets.
func (r *jobRepo) ClaimUnnotified(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
UPDATE jobs SET notified_at = now(), updated_at = now()
WHERE id IN (
  SELECT id FROM jobs
  WHERE status IN ('completed', 'failed') AND seen = FALSE AND notified_at IS NULL
  ORDER BY updated_at
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

	rows, err := pickRows(ctx, r.pool, nil, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) FailStuck(ctx context.Context, maxAge time.Duration, cause string) ([]*model.Job, error) {
	const q = `
UPDATE jobs SET status = 'failed', last_error = $2, updated_at = now()
WHERE status = 'processing' AND updated_at < $1
RETURNING ` + jobColumns

	rows, err := pickRows(ctx, r.pool, nil, q, time.Now().Add(-maxAge), cause)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
