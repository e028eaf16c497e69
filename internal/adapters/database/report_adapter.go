package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// ReportAdapter implements the ReportRepository interface
type ReportAdapter struct {
	db queryer
}

var _ repositories.ReportRepository = (*ReportAdapter)(nil)

// NewReportAdapter creates a new report adapter
func NewReportAdapter(db queryer) *ReportAdapter {
	return &ReportAdapter{db: db}
}

// Create inserts a report and writes back its ID
func (a *ReportAdapter) Create(ctx context.Context, report *entities.FountainReport) error {
	id, err := insertReturningID(ctx, a.db, tableReports, goqu.Record{
		"fountain_id": report.FountainID,
		"user_id":     report.UserID,
		"report_type": string(report.ReportType),
		"description": report.Description,
		"status":      string(report.Status),
		"created_at":  report.CreatedAt,
		"resolved_at": report.ResolvedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	report.ID = id
	return nil
}

// GetByID retrieves a report by ID
func (a *ReportAdapter) GetByID(ctx context.Context, id int64) (*entities.FountainReport, error) {
	var report entities.FountainReport
	found, err := a.db.From(tableReports).Where(goqu.Ex{"id": id}).ScanStructContext(ctx, &report)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("report with id %d not found", id))
	}
	return &report, nil
}

// ListByFountain returns reports newest first
func (a *ReportAdapter) ListByFountain(ctx context.Context, fountainID int64) ([]*entities.FountainReport, error) {
	reports := []*entities.FountainReport{}
	err := a.db.From(tableReports).
		Where(goqu.Ex{"fountain_id": fountainID}).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		ScanStructsContext(ctx, &reports)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// SetStatus records a moderation decision
func (a *ReportAdapter) SetStatus(ctx context.Context, id int64, status entities.ReportStatus, resolvedAt *time.Time) error {
	res, err := a.db.Update(tableReports).Set(goqu.Record{
		"status":      string(status),
		"resolved_at": resolvedAt,
	}).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return affectedOne(res, "report", id)
}
