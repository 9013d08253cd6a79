package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
)

var _ repository.PushSubscriptionRepository = (*pushSubscriptionRepo)(nil)

type pushSubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPushSubscriptionRepo(pool *pgxpool.Pool) *pushSubscriptionRepo {
	return &pushSubscriptionRepo{pool: pool}
}

func (r *pushSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PushSubscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	// The UNIQUE constraint on (owner_id, endpoint) makes re-registration an
	// upsert of the keys rather than a duplicate row.
	const q = `
INSERT INTO push_subscriptions (id, owner_id, endpoint, p256dh, auth, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (owner_id, endpoint) DO UPDATE SET
  p256dh = EXCLUDED.p256dh,
  auth = EXCLUDED.auth;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.OwnerID, s.Endpoint, s.P256dh, s.Auth, s.CreatedAt)
	return err
}

func (r *pushSubscriptionRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.PushSubscription, error) {
	const q = `
SELECT id, owner_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions
WHERE owner_id = $1
ORDER BY created_at`

	rows, err := pickRows(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PushSubscription
	for rows.Next() {
		var s model.PushSubscription
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *pushSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `DELETE FROM push_subscriptions WHERE id = $1`

	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
