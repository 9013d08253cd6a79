// File: internal/infra/redis/presence.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const presenceTTL = 90 * time.Second

// PresenceTracker records which owners have an active client. Every
// authenticated request refreshes the owner's marker; the worker consults it
// when deciding whether a finished job still has an audience or should go
// out as a push.
type PresenceTracker struct {
	client *Client
}

func NewPresenceTracker(c *Client) *PresenceTracker {
	return &PresenceTracker{client: c}
}

func presenceKey(ownerID string) string {
	return fmt.Sprintf("presence:%s", ownerID)
}

// Touch refreshes the owner's presence marker.
func (p *PresenceTracker) Touch(ctx context.Context, ownerID string) error {
	return p.client.Set(ctx, presenceKey(ownerID), "1", presenceTTL)
}

// Alive reports whether the owner's client was active recently.
func (p *PresenceTracker) Alive(ctx context.Context, ownerID string) (bool, error) {
	_, err := p.client.Get(ctx, presenceKey(ownerID))
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
