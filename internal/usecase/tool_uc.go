package usecase

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
	"github.com/ameeramer/personal-coacher/internal/infra/metrics"
)

// Compile-time check
var _ ToolUseCase = (*toolUC)(nil)

// ToolSubmission pairs the pending tool placeholder with the job to poll.
type ToolSubmission struct {
	Tool *model.DailyTool
	Job  *model.Job
}

type generatePayload struct {
	Focus string `json:"focus"`
}

type refinePayload struct {
	Instructions string `json:"instructions"`
}

type ToolUseCase interface {
	// Generate enqueues creation of a daily tool around the given focus area.
	Generate(ctx context.Context, ownerID, focus string) (*ToolSubmission, error)

	// Refine enqueues a rewrite of an existing tool. The tool must belong to
	// ownerID; otherwise domain.ErrNotFound.
	Refine(ctx context.Context, ownerID, toolID, instructions string) (*ToolSubmission, error)

	GetTool(ctx context.Context, ownerID, toolID string) (*model.DailyTool, error)
}

type toolUC struct {
	tools repository.ToolRepository
	jobs  repository.JobRepository
	queue adapter.JobQueue
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewToolUseCase(
	tools repository.ToolRepository,
	jobs repository.JobRepository,
	queue adapter.JobQueue,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *toolUC {
	return &toolUC{tools: tools, jobs: jobs, queue: queue, tm: tm, log: logger}
}

func (u *toolUC) Generate(ctx context.Context, ownerID, focus string) (*ToolSubmission, error) {
	focus = strings.TrimSpace(focus)
	if focus == "" {
		return nil, domain.ErrInvalidArgument
	}

	payload, _ := json.Marshal(generatePayload{Focus: focus})
	job := model.NewJob(ulid.Make().String(), ownerID, model.JobKindToolGenerate, payload)
	tool := model.NewDailyTool(uuid.NewString(), ownerID, focus)

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tools.Save(ctx, tx, tool); err != nil {
			return err
		}
		job.ToolID = tool.ID
		return u.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}

	dispatchJob(ctx, u.queue, u.jobs, job, u.log)
	metrics.IncJobEnqueued(string(job.Kind))
	return &ToolSubmission{Tool: tool, Job: job}, nil
}

func (u *toolUC) Refine(ctx context.Context, ownerID, toolID, instructions string) (*ToolSubmission, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return nil, domain.ErrInvalidArgument
	}

	payload, _ := json.Marshal(refinePayload{Instructions: instructions})
	job := model.NewJob(ulid.Make().String(), ownerID, model.JobKindToolRefine, payload)

	var tool *model.DailyTool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		tool, err = u.tools.FindOwned(ctx, tx, toolID, ownerID)
		if err != nil {
			return err
		}
		tool.Status = model.ToolPending
		if err := u.tools.Save(ctx, tx, tool); err != nil {
			return err
		}
		job.ToolID = tool.ID
		return u.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}

	dispatchJob(ctx, u.queue, u.jobs, job, u.log)
	metrics.IncJobEnqueued(string(job.Kind))
	return &ToolSubmission{Tool: tool, Job: job}, nil
}

func (u *toolUC) GetTool(ctx context.Context, ownerID, toolID string) (*model.DailyTool, error) {
	return u.tools.FindOwned(ctx, repository.NoTX, toolID, ownerID)
}
