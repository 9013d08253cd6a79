package repository

import (
	"context"

	"github.com/ameeramer/personal-coacher/internal/domain/model"
)

type ConversationRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Conversation) error

	// FindOwned loads a conversation with its messages, scoped to ownerID.
	FindOwned(ctx context.Context, tx Tx, id, ownerID string) (*model.Conversation, error)

	// FindByID loads a conversation regardless of owner. Worker-side only.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Conversation, error)

	SaveMessage(ctx context.Context, tx Tx, m *model.Message) error

	// FillMessage writes content + status into a pending message placeholder.
	FillMessage(ctx context.Context, tx Tx, id, content string, status model.MessageStatus) error
}
