package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
)

var _ adapter.PushDispatcher = (*WebPushDispatcher)(nil)

// WebPushDispatcher delivers notifications over the Web Push protocol with
// VAPID authentication.
type WebPushDispatcher struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
}

func NewWebPushDispatcher(publicKey, privateKey, subscriber string) (*WebPushDispatcher, error) {
	if publicKey == "" || privateKey == "" {
		return nil, domain.ErrPushUnconfigured
	}
	return &WebPushDispatcher{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		ttl:        60,
	}, nil
}

func (d *WebPushDispatcher) PublicKey() string { return d.publicKey }

func (d *WebPushDispatcher) Send(ctx context.Context, sub *model.PushSubscription, payload adapter.PushPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, b, target, &webpush.Options{
		Subscriber:      d.subscriber,
		VAPIDPublicKey:  d.publicKey,
		VAPIDPrivateKey: d.privateKey,
		TTL:             d.ttl,
	})
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// Subscription expired or unregistered at the push service.
		return domain.ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service status %d", resp.StatusCode)
	}
	return nil
}

var _ adapter.PushDispatcher = (*NoopDispatcher)(nil)

// NoopDispatcher records payloads instead of delivering them; dev mode and
// tests.
type NoopDispatcher struct {
	Sent []adapter.PushPayload
}

func NewNoopDispatcher() *NoopDispatcher { return &NoopDispatcher{} }

func (d *NoopDispatcher) PublicKey() string { return "noop" }

func (d *NoopDispatcher) Send(ctx context.Context, sub *model.PushSubscription, payload adapter.PushPayload) error {
	if sub == nil {
		return errors.New("nil subscription")
	}
	d.Sent = append(d.Sent, payload)
	return nil
}
