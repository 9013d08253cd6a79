package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

type JobKind string

const (
	JobKindChatReply    JobKind = "chat_reply"
	JobKindToolGenerate JobKind = "tool_generate"
	JobKindToolRefine   JobKind = "tool_refine"
)

// Job is one deferred unit of AI-backed work and its outcome. Created pending,
// claimed by exactly one worker, finished exactly once. After a terminal status
// only the Seen flag may still change.
type Job struct {
	ID             string
	OwnerID        string
	Kind           JobKind
	ConversationID string
	MessageID      string
	ToolID         string
	Payload        json.RawMessage
	Status         JobStatus
	Result         string
	LastError      string
	QueueMessageID string
	Seen           bool
	NotifiedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewJob(id, ownerID string, kind JobKind, payload json.RawMessage) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		OwnerID:   ownerID,
		Kind:      kind,
		Payload:   payload,
		Status:    JobStatusPending,
		Seen:      true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidKind reports whether k names a known job kind.
func ValidKind(k JobKind) bool {
	switch k {
	case JobKindChatReply, JobKindToolGenerate, JobKindToolRefine:
		return true
	}
	return false
}
