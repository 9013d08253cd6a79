package apiv1

import (
	"time"

	"github.com/ameeramer/personal-coacher/internal/domain/model"
)

// Request bodies.

type sendMessageRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

type generateToolRequest struct {
	Focus string `json:"focus"`
}

type refineToolRequest struct {
	Instructions string `json:"instructions"`
}

type registerPushRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Response bodies.

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type sendMessageResponse struct {
	ConversationID string          `json:"conversationId"`
	UserMessage    messageResponse `json:"userMessage"`
	PendingMessage messageResponse `json:"pendingMessage"`
	JobID          string          `json:"jobId"`
	Status         string          `json:"status"`
}

type conversationResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []messageResponse `json:"messages"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type toolResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type toolSubmissionResponse struct {
	Tool   toolResponse `json:"tool"`
	JobID  string       `json:"jobId"`
	Status string       `json:"status"`
}

type jobResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type markSeenResponse struct {
	Success bool `json:"success"`
}

type registerPushResponse struct {
	ID string `json:"id"`
}

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

func toConversationResponse(c *model.Conversation) conversationResponse {
	msgs := make([]messageResponse, 0, len(c.Messages))
	for i := range c.Messages {
		msgs = append(msgs, toMessageResponse(&c.Messages[i]))
	}
	return conversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  msgs,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toToolResponse(t *model.DailyTool) toolResponse {
	return toolResponse{
		ID:        t.ID,
		Title:     t.Title,
		Content:   t.Content,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:        j.ID,
		Kind:      string(j.Kind),
		Status:    string(j.Status),
		Result:    j.Result,
		Error:     j.LastError,
		Seen:      j.Seen,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
