package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
)

var _ repository.ConversationRepository = (*conversationRepo)(nil)

type conversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *conversationRepo {
	return &conversationRepo{pool: pool}
}

func (r *conversationRepo) Save(ctx context.Context, tx repository.Tx, c *model.Conversation) error {
	c.UpdatedAt = time.Now()

	const q = `
INSERT INTO conversations (id, owner_id, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.OwnerID, c.Title, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *conversationRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Conversation, error) {
	const q = `
SELECT id, owner_id, title, created_at, updated_at
FROM conversations
WHERE id = $1 AND owner_id = $2`

	return r.load(ctx, tx, q, id, ownerID)
}

func (r *conversationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	const q = `
SELECT id, owner_id, title, created_at, updated_at
FROM conversations
WHERE id = $1`

	return r.load(ctx, tx, q, id)
}

func (r *conversationRepo) load(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Conversation, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}

	var c model.Conversation
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	const mq = `
SELECT id, conversation_id, role, content, status, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at`

	rows, err := pickRows(ctx, r.pool, tx, mq, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Message
		var statusStr string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &statusStr, &m.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		m.Status = model.MessageStatus(statusStr)
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepo) SaveMessage(ctx context.Context, tx repository.Tx, m *model.Message) error {
	const q = `
INSERT INTO messages (id, conversation_id, role, content, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  content = EXCLUDED.content,
  status = EXCLUDED.status;`

	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.ConversationID, m.Role, m.Content, m.Status, m.CreatedAt)
	return err
}

func (r *conversationRepo) FillMessage(ctx context.Context, tx repository.Tx, id, content string, status model.MessageStatus) error {
	const q = `
UPDATE messages SET content = $2, status = $3
WHERE id = $1 AND status = 'pending'`

	tag, err := execSQL(ctx, r.pool, tx, q, id, content, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
