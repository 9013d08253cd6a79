package repository

import (
	"context"

	"github.com/ameeramer/personal-coacher/internal/domain/model"
)

type ToolRepository interface {
	Save(ctx context.Context, tx Tx, t *model.DailyTool) error
	FindOwned(ctx context.Context, tx Tx, id, ownerID string) (*model.DailyTool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.DailyTool, error)

	// Fill writes generated content + terminal status into a pending tool.
	Fill(ctx context.Context, tx Tx, id, content string, status model.ToolStatus) error
}
