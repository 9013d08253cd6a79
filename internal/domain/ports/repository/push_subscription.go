package repository

import (
	"context"

	"github.com/ameeramer/personal-coacher/internal/domain/model"
)

type PushSubscriptionRepository interface {
	// Save upserts on (owner, endpoint) so re-registering a device is a no-op.
	Save(ctx context.Context, tx Tx, s *model.PushSubscription) error

	ListByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.PushSubscription, error)

	// Delete removes a subscription by id and reports whether a row was
	// actually deleted. Safe under concurrent deletes of the same target.
	Delete(ctx context.Context, tx Tx, id string) (bool, error)
}
