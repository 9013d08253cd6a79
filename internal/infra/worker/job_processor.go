package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
	"github.com/ameeramer/personal-coacher/internal/infra/logging"
	"github.com/ameeramer/personal-coacher/internal/infra/metrics"
	"github.com/ameeramer/personal-coacher/internal/infra/queue"
)

const systemPrompt = "You are a supportive personal coach. Be concise, warm and practical."

const historyWindow = 15

// PresenceChecker reports whether an owner's client was recently active.
type PresenceChecker interface {
	Alive(ctx context.Context, ownerID string) (bool, error)
}

// JobProcessor drives one job through its state machine per queue delivery:
// claim, invoke the model, persist the artifact, finalize. Failures stay on
// the job record; they never propagate back to the request that enqueued it.
type JobProcessor struct {
	jobs          repository.JobRepository
	conversations repository.ConversationRepository
	tools         repository.ToolRepository
	aiAdapter     adapter.AIServiceAdapter
	presence      PresenceChecker
	model         string
	tm            repository.TransactionManager
	log           *zerolog.Logger
}

func NewJobProcessor(
	jobs repository.JobRepository,
	conversations repository.ConversationRepository,
	tools repository.ToolRepository,
	aiAdapter adapter.AIServiceAdapter,
	presence PresenceChecker,
	defaultModel string,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *JobProcessor {
	compLog := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		jobs:          jobs,
		conversations: conversations,
		tools:         tools,
		aiAdapter:     aiAdapter,
		presence:      presence,
		model:         defaultModel,
		tm:            tm,
		log:           &compLog,
	}
}

// ProcessTask is the asynq handler for queue.TaskTypeProcessJob.
func (p *JobProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	defer logging.TraceDuration(p.log, "JobProcessor.ProcessTask")()

	var payload queue.TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal task payload: %w", err)
	}

	job, err := p.jobs.Claim(ctx, payload.JobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotClaimable):
			// Duplicate delivery from the at-least-once queue; the first
			// claim won and this one is a no-op.
			p.log.Debug().Str("job_id", payload.JobID).Msg("duplicate delivery discarded")
			return nil
		case errors.Is(err, domain.ErrNotFound):
			p.log.Warn().Str("job_id", payload.JobID).Msg("delivery for unknown job")
			return nil
		default:
			// Infrastructure failure: let the queue redeliver.
			return fmt.Errorf("claim job %s: %w", payload.JobID, err)
		}
	}

	ctx = logging.WithJobID(ctx, job.ID)
	jlog := logging.With(ctx, p.log)
	jlog.Info().Str("kind", string(job.Kind)).Msg("processing job")
	start := time.Now()

	result, err := p.handleJob(ctx, job)

	finalStatus := model.JobStatusCompleted
	lastError := ""
	if err != nil {
		finalStatus = model.JobStatusFailed
		lastError = err.Error()
		result = ""
		jlog.Error().Err(err).Msg("job failed")
	}

	// A job is created seen. When the owner's client is gone by the time the
	// work is done, clear the flag so the finalize step hands the job to the
	// push fan-out. Presence errors count as present: a missed push beats a
	// spurious one.
	if alive, perr := p.presence.Alive(ctx, job.OwnerID); perr == nil && !alive {
		if cerr := p.jobs.ClearSeen(ctx, job.ID); cerr != nil {
			jlog.Warn().Err(cerr).Msg("could not clear seen flag")
		}
	} else if perr != nil {
		jlog.Warn().Err(perr).Msg("presence check failed")
	}

	// Deliberately a fresh context: a cancelled task context must not lose
	// the terminal state.
	unseen, ferr := p.jobs.Finalize(context.Background(), job.ID, finalStatus, result, lastError)
	if ferr != nil {
		if errors.Is(ferr, domain.ErrJobNotClaimable) {
			jlog.Warn().Msg("job already finalized")
			return nil
		}
		return fmt.Errorf("finalize job %s: %w", job.ID, ferr)
	}

	metrics.IncJobProcessed(string(job.Kind), string(finalStatus))
	jlog.Info().
		Str("status", string(finalStatus)).
		Bool("unseen", unseen).
		Dur("duration", time.Since(start)).
		Msg("job finished")
	return nil
}

// handleJob runs the kind-specific work and returns the generated text.
func (p *JobProcessor) handleJob(ctx context.Context, job *model.Job) (string, error) {
	switch job.Kind {
	case model.JobKindChatReply:
		return p.handleChatReply(ctx, job)
	case model.JobKindToolGenerate:
		return p.handleToolGenerate(ctx, job)
	case model.JobKindToolRefine:
		return p.handleToolRefine(ctx, job)
	default:
		return "", fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidArgument, job.Kind)
	}
}

func (p *JobProcessor) handleChatReply(ctx context.Context, job *model.Job) (string, error) {
	conv, err := p.conversations.FindByID(ctx, repository.NoTX, job.ConversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Conversation deleted between enqueue and processing.
			return "", fmt.Errorf("%w: conversation %s", domain.ErrStaleReference, job.ConversationID)
		}
		return "", err
	}

	msgs := conv.RecentMessages(historyWindow)
	adapterMsgs := make([]adapter.Message, 0, len(msgs)+1)
	adapterMsgs = append(adapterMsgs, adapter.Message{Role: "system", Content: systemPrompt})
	for _, m := range msgs {
		if m.ID == job.MessageID || m.Status == model.MessagePending {
			continue // skip the placeholder this job is about to fill
		}
		adapterMsgs = append(adapterMsgs, adapter.Message{Role: m.Role, Content: m.Content})
	}

	p.logPromptSize(ctx, job.ID, adapterMsgs)
	reply, err := p.aiAdapter.Chat(ctx, p.model, adapterMsgs)
	if err != nil {
		p.failArtifact(job)
		return "", fmt.Errorf("ai adapter failed: %w", err)
	}
	if reply == "" {
		p.failArtifact(job)
		return "", errors.New("ai adapter returned empty output")
	}

	err = p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return p.conversations.FillMessage(ctx, tx, job.MessageID, reply, model.MessageCompleted)
	})
	if err != nil {
		p.failArtifact(job)
		return "", fmt.Errorf("persist assistant message: %w", err)
	}
	return reply, nil
}

func (p *JobProcessor) handleToolGenerate(ctx context.Context, job *model.Job) (string, error) {
	tool, err := p.tools.FindByID(ctx, repository.NoTX, job.ToolID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: tool %s", domain.ErrStaleReference, job.ToolID)
		}
		return "", err
	}

	var payload struct {
		Focus string `json:"focus"`
	}
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("malformed job payload: %w", err)
	}

	prompt := fmt.Sprintf("Create a short, actionable daily exercise for the focus area: %q. "+
		"Give it a one-line intention and 3-5 concrete steps.", payload.Focus)
	return p.generateInto(ctx, job, tool.ID, prompt)
}

func (p *JobProcessor) handleToolRefine(ctx context.Context, job *model.Job) (string, error) {
	tool, err := p.tools.FindByID(ctx, repository.NoTX, job.ToolID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: tool %s", domain.ErrStaleReference, job.ToolID)
		}
		return "", err
	}

	var payload struct {
		Instructions string `json:"instructions"`
	}
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("malformed job payload: %w", err)
	}

	prompt := fmt.Sprintf("Rewrite the following daily exercise according to these instructions: %q.\n\n%s",
		payload.Instructions, tool.Content)
	return p.generateInto(ctx, job, tool.ID, prompt)
}

func (p *JobProcessor) generateInto(ctx context.Context, job *model.Job, toolID, prompt string) (string, error) {
	msgs := []adapter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	p.logPromptSize(ctx, job.ID, msgs)
	text, err := p.aiAdapter.Chat(ctx, p.model, msgs)
	if err != nil {
		p.failArtifact(job)
		return "", fmt.Errorf("ai adapter failed: %w", err)
	}
	if text == "" {
		p.failArtifact(job)
		return "", errors.New("ai adapter returned empty output")
	}

	err = p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return p.tools.Fill(ctx, tx, toolID, text, model.ToolCompleted)
	})
	if err != nil {
		p.failArtifact(job)
		return "", fmt.Errorf("persist tool content: %w", err)
	}
	return text, nil
}

// logPromptSize records the prompt token count at debug level. Best effort;
// counting must never block or fail the job.
func (p *JobProcessor) logPromptSize(ctx context.Context, jobID string, msgs []adapter.Message) {
	if p.log.GetLevel() > zerolog.DebugLevel {
		// Counting can be a provider round trip; skip it unless someone is
		// going to read the number.
		return
	}
	n, err := p.aiAdapter.CountTokens(ctx, p.model, msgs)
	if err != nil {
		return
	}
	p.log.Debug().Str("job_id", jobID).Int("prompt_tokens", n).Msg("prompt assembled")
}

// failArtifact marks the correlated placeholder failed so a polling client
// stops waiting on it. Best effort; the job record carries the real cause.
func (p *JobProcessor) failArtifact(job *model.Job) {
	ctx := context.Background()
	switch job.Kind {
	case model.JobKindChatReply:
		if job.MessageID != "" {
			_ = p.conversations.FillMessage(ctx, repository.NoTX, job.MessageID, "", model.MessageFailed)
		}
	case model.JobKindToolGenerate, model.JobKindToolRefine:
		if job.ToolID != "" {
			_ = p.tools.Fill(ctx, repository.NoTX, job.ToolID, "", model.ToolFailed)
		}
	}
}
