package model

import "time"

type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
)

// DailyTool is a generated coaching exercise for one user. Created as a
// pending placeholder at enqueue time; content arrives when the generation
// job completes. Refinement rewrites content in place through the same
// lifecycle.
type DailyTool struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string
	Status    ToolStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewDailyTool(id, ownerID, title string) *DailyTool {
	now := time.Now()
	return &DailyTool{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Status:    ToolPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
