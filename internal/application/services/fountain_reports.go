package services

import (
	"context"
	"fmt"

	"github.com/berez-app/berez/backend/internal/application/loaders"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// SubmitReport files a pending report against a fountain
func (m *FountainManager) SubmitReport(ctx context.Context, fountainID int64, in entities.ReportInput, reporter *entities.User) (*entities.FountainReport, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	report := &entities.FountainReport{
		FountainID:  fountainID,
		ReportType:  in.ReportType,
		Description: in.Description,
		Status:      entities.ReportStatusPending,
		CreatedAt:   m.now(),
	}
	if reporter != nil {
		id := reporter.ID
		report.UserID = &id
	}

	var fountain *entities.Fountain
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		f, err := tx.Fountains().GetByID(ctx, fountainID)
		if err != nil {
			return err
		}
		fountain = f
		return tx.Reports().Create(ctx, report)
	})
	if err != nil {
		return nil, apperrors.AsStorage("failed to submit report", err)
	}

	m.invalidate(ctx, fountainID)
	m.publish(ctx, entities.NewFountainEvent(fountain, entities.FountainEventReportCreated, map[string]interface{}{
		"report_id":   report.ID,
		"report_type": string(report.ReportType),
	}))
	return report, nil
}

// ListReports returns the fountain's reports newest first with their reporters' usernames
func (m *FountainManager) ListReports(ctx context.Context, fountainID int64) ([]*entities.ReportWithReporter, error) {
	if err := m.requireFountain(ctx, fountainID); err != nil {
		return nil, err
	}

	reports, err := m.store.Reports().ListByFountain(ctx, fountainID)
	if err != nil {
		return nil, apperrors.AsStorage("failed to list reports", err)
	}

	ids := make([]int64, 0, len(reports))
	for _, r := range reports {
		if r.UserID != nil {
			ids = append(ids, *r.UserID)
		}
	}
	names := loaders.Usernames(ctx, m.store.Users(), ids)

	out := make([]*entities.ReportWithReporter, len(reports))
	for i, r := range reports {
		out[i] = &entities.ReportWithReporter{FountainReport: *r, Username: usernameFor(names, r.UserID)}
	}
	return out, nil
}

// ResolveReport closes a report as resolved or rejected. Repeating the current decision is a
// no-op; switching a closed report to the other decision is a Conflict.
func (m *FountainManager) ResolveReport(ctx context.Context, reportID int64, status entities.ReportStatus) (*entities.FountainReport, error) {
	if !status.Terminal() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("report status must be %q or %q", entities.ReportStatusResolved, entities.ReportStatusRejected))
	}

	var (
		report  *entities.FountainReport
		changed bool
	)
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		r, err := tx.Reports().GetByID(ctx, reportID)
		if err != nil {
			return err
		}
		report = r
		if r.Status == status {
			return nil
		}
		if r.Status.Terminal() {
			return apperrors.NewConflictError(fmt.Sprintf("report %d is already %s", reportID, r.Status))
		}

		now := m.now()
		if err := tx.Reports().SetStatus(ctx, reportID, status, &now); err != nil {
			return err
		}
		r.Status = status
		r.ResolvedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, apperrors.AsStorage("failed to resolve report", err)
	}

	if changed {
		m.invalidate(ctx, report.FountainID)
	}
	if changed && m.events != nil {
		if f, err := m.store.Fountains().GetByID(ctx, report.FountainID); err == nil {
			m.publish(ctx, entities.NewFountainEvent(f, entities.FountainEventReportClosed, map[string]interface{}{
				"report_id": report.ID,
				"status":    string(report.Status),
			}))
		}
	}
	return report, nil
}
