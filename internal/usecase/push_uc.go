package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
)

// Compile-time check
var _ PushUseCase = (*pushUC)(nil)

type PushUseCase interface {
	// Register stores one browser push target for the owner. Upserts on
	// (owner, endpoint), so re-registering the same device is harmless.
	Register(ctx context.Context, ownerID, endpoint, p256dh, auth string) (*model.PushSubscription, error)

	// PublicKey returns the VAPID public key clients subscribe with, or
	// domain.ErrPushUnconfigured when push is not set up.
	PublicKey() (string, error)
}

type pushUC struct {
	subs       repository.PushSubscriptionRepository
	dispatcher adapter.PushDispatcher
}

func NewPushUseCase(subs repository.PushSubscriptionRepository, dispatcher adapter.PushDispatcher) *pushUC {
	return &pushUC{subs: subs, dispatcher: dispatcher}
}

func (u *pushUC) Register(ctx context.Context, ownerID, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, domain.ErrInvalidArgument
	}

	sub := &model.PushSubscription{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Endpoint: endpoint,
		P256dh:   p256dh,
		Auth:     auth,
	}
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (u *pushUC) PublicKey() (string, error) {
	key := u.dispatcher.PublicKey()
	if key == "" {
		return "", domain.ErrPushUnconfigured
	}
	return key, nil
}
