package usecase

import (
	"context"

	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	// Poll returns the current state of an owned job; jobs belonging to
	// other owners surface as domain.ErrNotFound, never as forbidden.
	Poll(ctx context.Context, ownerID, jobID string) (*model.Job, error)

	// MarkSeen records that the owner already observed the result, which
	// suppresses the push. Idempotent.
	MarkSeen(ctx context.Context, ownerID, jobID string) error
}

type jobUC struct {
	jobs repository.JobRepository
}

func NewJobUseCase(jobs repository.JobRepository) *jobUC {
	return &jobUC{jobs: jobs}
}

func (u *jobUC) Poll(ctx context.Context, ownerID, jobID string) (*model.Job, error) {
	return u.jobs.FindOwned(ctx, repository.NoTX, jobID, ownerID)
}

func (u *jobUC) MarkSeen(ctx context.Context, ownerID, jobID string) error {
	return u.jobs.MarkSeen(ctx, jobID, ownerID)
}
