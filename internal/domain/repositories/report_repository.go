package repositories

import (
	"context"
	"time"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// ReportRepository defines the interface for fountain report operations
type ReportRepository interface {
	Create(ctx context.Context, report *entities.FountainReport) error
	GetByID(ctx context.Context, id int64) (*entities.FountainReport, error)

	// ListByFountain returns the fountain's reports newest first
	ListByFountain(ctx context.Context, fountainID int64) ([]*entities.FountainReport, error)

	// SetStatus records a moderation decision
	SetStatus(ctx context.Context, id int64, status entities.ReportStatus, resolvedAt *time.Time) error
}
