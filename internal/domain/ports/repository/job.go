package repository

import (
	"context"
	"time"

	"github.com/ameeramer/personal-coacher/internal/domain/model"
)

// JobRepository is the durable record store for deferred jobs.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error

	// FindOwned returns the job only when it belongs to ownerID; otherwise
	// domain.ErrNotFound. Existence is never revealed across owners.
	FindOwned(ctx context.Context, tx Tx, id, ownerID string) (*model.Job, error)

	// Claim atomically moves a pending job to processing and returns it.
	// Returns domain.ErrJobNotClaimable when the job is already processing or
	// terminal (duplicate queue delivery), domain.ErrNotFound when absent.
	Claim(ctx context.Context, id string) (*model.Job, error)

	// Finalize writes the terminal status in one statement and reports whether
	// the owner has not yet seen the result at that exact moment. The update is
	// conditional on status='processing'; a second call is a no-op returning
	// domain.ErrJobNotClaimable.
	Finalize(ctx context.Context, id string, status model.JobStatus, result, lastError string) (unseen bool, err error)

	// MarkSeen flips seen to true for an owned job. Idempotent: marking an
	// already-seen job succeeds without another mutation.
	MarkSeen(ctx context.Context, id, ownerID string) error

	// RecordDispatch stores the queue message id for a published job. It never
	// touches status: the worker may have claimed or even finalized the job
	// between publish and this write.
	RecordDispatch(ctx context.Context, id, queueMessageID string) error

	// ClearSeen flips seen to false while the job is still processing, used
	// when the worker observes the owning client detached. No-op once the job
	// is terminal.
	ClearSeen(ctx context.Context, id string) error

	// ClaimUnnotified atomically stamps notified_at on terminal, unseen,
	// not-yet-notified jobs and returns them. Two concurrent callers receive
	// disjoint sets.
	ClaimUnnotified(ctx context.Context, limit int) ([]*model.Job, error)

	// FailStuck fails jobs that have sat in processing longer than maxAge and
	// returns them, so the caller can fail their correlated artifacts too.
	FailStuck(ctx context.Context, maxAge time.Duration, cause string) ([]*model.Job, error)
}
