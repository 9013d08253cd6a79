// File: internal/usecase/chat_uc.go
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
var _ ChatUseCase = (*chatUC)(nil)

// ChatSubmission is what the client gets back immediately after enqueue: the
// consistent pending pair plus the job to poll.
type ChatSubmission struct {
	ConversationID string
	UserMessage    *model.Message
	PendingMessage *model.Message
	Job            *model.Job
}

type chatPayload struct {
	Message string `json:"message"`
}

type ChatUseCase interface {
	// SendMessage persists the user message together with a pending assistant
	// placeholder and a pending job, then schedules async processing. Returns
	// without waiting for the AI call.
	SendMessage(ctx context.Context, ownerID, conversationID, text string) (*ChatSubmission, error)

	GetConversation(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error)
}

type chatUC struct {
	conversations repository.ConversationRepository
	jobs          repository.JobRepository
	queue         adapter.JobQueue
	tm            repository.TransactionManager
	log           *zerolog.Logger
}

func NewChatUseCase(
	conversations repository.ConversationRepository,
	jobs repository.JobRepository,
	queue adapter.JobQueue,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *chatUC {
	return &chatUC{conversations: conversations, jobs: jobs, queue: queue, tm: tm, log: logger}
}

func (c *chatUC) SendMessage(ctx context.Context, ownerID, conversationID, text string) (*ChatSubmission, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrInvalidArgument
	}

	payload, _ := json.Marshal(chatPayload{Message: text})
	job := model.NewJob(ulid.Make().String(), ownerID, model.JobKindChatReply, payload)

	var sub ChatSubmission

	// Conversation, both messages and the job land in one transaction so the
	// client's immediate read after enqueue sees a consistent pending pair.
	err := c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var conv *model.Conversation
		if conversationID == "" {
			conv = model.NewConversation(uuid.NewString(), ownerID, titleFrom(text))
			if err := c.conversations.Save(ctx, tx, conv); err != nil {
				return err
			}
		} else {
			var err error
			conv, err = c.conversations.FindOwned(ctx, tx, conversationID, ownerID)
			if err != nil {
				return err
			}
		}

		userMsg := conv.AddMessage(uuid.NewString(), "user", text, model.MessageCompleted)
		if err := c.conversations.SaveMessage(ctx, tx, userMsg); err != nil {
			return err
		}
		pendingMsg := conv.AddMessage(uuid.NewString(), "assistant", "", model.MessagePending)
		if err := c.conversations.SaveMessage(ctx, tx, pendingMsg); err != nil {
			return err
		}

		job.ConversationID = conv.ID
		job.MessageID = pendingMsg.ID
		if err := c.jobs.Save(ctx, tx, job); err != nil {
			return err
		}

		sub = ChatSubmission{
			ConversationID: conv.ID,
			UserMessage:    userMsg,
			PendingMessage: pendingMsg,
			Job:            job,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispatchJob(ctx, c.queue, c.jobs, job, c.log)
	metrics.IncJobEnqueued(string(job.Kind))
	return &sub, nil
}

func (c *chatUC) GetConversation(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error) {
	return c.conversations.FindOwned(ctx, repository.NoTX, conversationID, ownerID)
}

// dispatchJob publishes the processing trigger. Best effort: on queue failure
// the job stays pending and a reconciliation sweep re-dispatches it later, so
// the submit path never fails after commit.
func dispatchJob(ctx context.Context, queue adapter.JobQueue, jobs repository.JobRepository, job *model.Job, log *zerolog.Logger) {
	qid, err := queue.Dispatch(ctx, job.ID)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("queue dispatch failed; job left pending")
		return
	}
	job.QueueMessageID = qid
	// A blind Save here could race the worker and drag a claimed or terminal
	// job back to pending; RecordDispatch only writes the message id.
	if err := jobs.RecordDispatch(ctx, job.ID, qid); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("could not record queue message id")
	}
}

func titleFrom(text string) string {
	const max = 48
	if len(text) <= max {
		return text
	}
	cut := strings.LastIndex(text[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return text[:cut]
}
