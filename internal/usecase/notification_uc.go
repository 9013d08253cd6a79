// File: internal/usecase/notification_uc.go
package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
	"github.com/ameeramer/personal-coacher/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// DispatchResult aggregates one fan-out sweep.
type DispatchResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

type NotificationUseCase interface {
	// DispatchPending claims terminal unseen jobs that were never notified
	// and pushes their outcome to every registered target of each owner.
	// Per-target failures never fail the sweep; they are counted.
	DispatchPending(ctx context.Context) (DispatchResult, error)
}

type notificationUC struct {
	jobs       repository.JobRepository
	subs       repository.PushSubscriptionRepository
	dispatcher adapter.PushDispatcher
	batchSize  int
	log        *zerolog.Logger
}

func NewNotificationUseCase(
	jobs repository.JobRepository,
	subs repository.PushSubscriptionRepository,
	dispatcher adapter.PushDispatcher,
	logger *zerolog.Logger,
) *notificationUC {
	compLog := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{jobs: jobs, subs: subs, dispatcher: dispatcher, batchSize: 100, log: &compLog}
}

func (n *notificationUC) DispatchPending(ctx context.Context) (DispatchResult, error) {
	var res DispatchResult

	// Claiming stamps the dispatch-attempted marker, so a job is handed to at
	// most one sweep even when two run concurrently.
	jobs, err := n.jobs.ClaimUnnotified(ctx, n.batchSize)
	if err != nil {
		return res, err
	}

	for _, job := range jobs {
		targets, err := n.subs.ListByOwner(ctx, repository.NoTX, job.OwnerID)
		if err != nil {
			n.log.Error().Err(err).Str("job_id", job.ID).Msg("could not list push targets")
			res.Failed++
			continue
		}
		if len(targets) == 0 {
			continue
		}

		payload := payloadFor(job)

		// Targets are independent; one slow or broken registration must not
		// block the rest.
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, target := range targets {
			wg.Add(1)
			go func(t *model.PushSubscription) {
				defer wg.Done()
				err := n.dispatcher.Send(ctx, t, payload)
				switch {
				case err == nil:
					metrics.IncPushDispatch("sent")
					mu.Lock()
					res.Sent++
					mu.Unlock()
				case errors.Is(err, domain.ErrSubscriptionGone):
					deleted, derr := n.subs.Delete(ctx, repository.NoTX, t.ID)
					if derr != nil {
						n.log.Error().Err(derr).Str("subscription_id", t.ID).Msg("could not remove gone subscription")
					}
					if deleted {
						metrics.IncPushDispatch("removed")
						mu.Lock()
						res.Removed++
						mu.Unlock()
					}
				default:
					n.log.Warn().Err(err).Str("subscription_id", t.ID).Str("job_id", job.ID).Msg("push dispatch failed")
					metrics.IncPushDispatch("failed")
					mu.Lock()
					res.Failed++
					mu.Unlock()
				}
			}(target)
		}
		wg.Wait()
	}
	return res, nil
}

func payloadFor(job *model.Job) adapter.PushPayload {
	p := adapter.PushPayload{JobID: job.ID}
	switch {
	case job.Status == model.JobStatusFailed:
		p.Title = "Something went wrong"
		p.Body = "We couldn't finish your request. Open the app to retry."
	case job.Kind == model.JobKindChatReply:
		p.Title = "Your coach replied"
		p.Body = "A new message is waiting for you."
		p.URL = "/conversations/" + job.ConversationID
	default:
		p.Title = "Your daily tool is ready"
		p.Body = "A new exercise is waiting for you."
		p.URL = "/tools/" + job.ToolID
	}
	return p
}
