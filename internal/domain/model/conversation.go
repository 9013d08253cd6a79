package model

import (
	"time"
)

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageCompleted MessageStatus = "completed"
	MessageFailed    MessageStatus = "failed"
)

// Message is one message within a coaching conversation. Assistant messages
// start as pending placeholders and are filled in by the job processor.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" | "assistant"
	Content        string
	Status         MessageStatus
	CreatedAt      time.Time
}

// Conversation is the aggregate root for one coaching chat thread.
type Conversation struct {
	ID        string
	OwnerID   string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewConversation(id, ownerID, title string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Messages:  make([]Message, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Conversation) AddMessage(id, role, content string, status MessageStatus) *Message {
	c.Messages = append(c.Messages, Message{
		ID:             id,
		ConversationID: c.ID,
		Role:           role,
		Content:        content,
		Status:         status,
		CreatedAt:      time.Now(),
	})
	c.UpdatedAt = time.Now()
	return &c.Messages[len(c.Messages)-1]
}

func (c *Conversation) RecentMessages(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
