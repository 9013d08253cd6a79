package adapter

import (
	"context"

	"github.com/ameeramer/personal-coacher/internal/domain/model"
)

// PushPayload is the notification body delivered to one target.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	JobID string `json:"jobId,omitempty"`
	URL   string `json:"url,omitempty"`
}

// PushDispatcher attempts delivery to a single registered target.
// A permanently invalid target is reported as domain.ErrSubscriptionGone so
// the caller can drop the registration; any other error is transient and
// leaves the registration intact.
type PushDispatcher interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload PushPayload) error

	// PublicKey returns the key clients need to create a subscription.
	PublicKey() string
}
