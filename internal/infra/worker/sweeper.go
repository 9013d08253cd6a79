package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
	"github.com/ameeramer/personal-coacher/internal/infra/metrics"
	"github.com/ameeramer/personal-coacher/internal/infra/redis"
)

const sweepLockKey = "sweep:stuck_jobs"

const stuckCause = "processing timed out"

// Sweeper periodically fails jobs abandoned in the processing state, for
// example after a worker crash between claim and finalize, together with
// their pending placeholders so polling clients reach a terminal state. A
// redis lock keeps the sweep single-flight across worker replicas.
type Sweeper struct {
	jobs          repository.JobRepository
	conversations repository.ConversationRepository
	tools         repository.ToolRepository
	locker        redis.Locker
	maxAge        time.Duration
	interval      time.Duration
	log           *zerolog.Logger
}

func NewSweeper(
	jobs repository.JobRepository,
	conversations repository.ConversationRepository,
	tools repository.ToolRepository,
	locker redis.Locker,
	maxAge, interval time.Duration,
	logger *zerolog.Logger,
) *Sweeper {
	compLog := logger.With().Str("component", "Sweeper").Logger()
	return &Sweeper{
		jobs:          jobs,
		conversations: conversations,
		tools:         tools,
		locker:        locker,
		maxAge:        maxAge,
		interval:      interval,
		log:           &compLog,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	token, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			s.log.Debug().Msg("sweep held by another replica")
			return
		}
		s.log.Error().Err(err).Msg("sweep lock failed")
		return
	}
	defer func() {
		if err := s.locker.Unlock(context.Background(), sweepLockKey, token); err != nil {
			s.log.Warn().Err(err).Msg("sweep unlock failed")
		}
	}()

	failed, err := s.jobs.FailStuck(ctx, s.maxAge, stuckCause)
	if err != nil {
		s.log.Error().Err(err).Msg("stuck job sweep failed")
		return
	}
	if len(failed) == 0 {
		return
	}

	// A crashed worker never got to fail its placeholders; do it here so the
	// poll-by-parent surface goes terminal with the job. The fills are
	// conditional on pending, so nothing already written is disturbed.
	for _, job := range failed {
		switch {
		case job.MessageID != "":
			if err := s.conversations.FillMessage(ctx, repository.NoTX, job.MessageID, "", model.MessageFailed); err != nil {
				s.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not fail stuck placeholder")
			}
		case job.ToolID != "":
			if err := s.tools.Fill(ctx, repository.NoTX, job.ToolID, "", model.ToolFailed); err != nil {
				s.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not fail stuck tool")
			}
		}
	}

	metrics.AddJobsSwept(len(failed))
	s.log.Warn().Int("count", len(failed)).Msg("failed stuck jobs")
}
