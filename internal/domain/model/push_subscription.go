package model

import "time"

// PushSubscription is one registered browser push target for a user. A user
// may hold several (one per device/browser). Unique on (owner, endpoint).
type PushSubscription struct {
	ID        string
	OwnerID   string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}
