package entities

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// ReportType classifies an issue filed against a fountain
type ReportType string

const (
	ReportTypeBroken            ReportType = "broken"
	ReportTypeMissing           ReportType = "missing"
	ReportTypeIncorrectLocation ReportType = "incorrect_location"
	ReportTypeOther             ReportType = "other"
)

// Valid reports whether t is a known report type
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeBroken, ReportTypeMissing, ReportTypeIncorrectLocation, ReportTypeOther:
		return true
	}
	return false
}

// ParseReportType converts a wire value into a ReportType
func ParseReportType(s string) (ReportType, error) {
	t := ReportType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown report type %q", s))
	}
	return t, nil
}

// ReportStatus is the moderation state of a report
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusResolved ReportStatus = "resolved"
	ReportStatusRejected ReportStatus = "rejected"
)

// Valid reports whether s is a known report status
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusPending, ReportStatusResolved, ReportStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s closes a report
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusResolved || s == ReportStatusRejected
}

// ParseReportStatus converts a wire value into a ReportStatus
func ParseReportStatus(s string) (ReportStatus, error) {
	st := ReportStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown report status %q", s))
	}
	return st, nil
}

// MaxReportDescription is the longest accepted report description, in characters
const MaxReportDescription = 500

// FountainReport is an issue filed by a user against a fountain
type FountainReport struct {
	ID          int64        `json:"id" db:"id"`
	FountainID  int64        `json:"fountain_id" db:"fountain_id"`
	UserID      *int64       `json:"user_id,omitempty" db:"user_id"`
	ReportType  ReportType   `json:"report_type" db:"report_type"`
	Description *string      `json:"description,omitempty" db:"description"`
	Status      ReportStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ReportInput is the payload of a report submission
type ReportInput struct {
	ReportType  ReportType `json:"report_type"`
	Description *string    `json:"description,omitempty"`
}

// Validate checks the report type and description length
func (in *ReportInput) Validate() error {
	if !in.ReportType.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown report type %q", in.ReportType))
	}
	if in.Description != nil && len([]rune(*in.Description)) > MaxReportDescription {
		return apperrors.NewValidationError(fmt.Sprintf("description must be at most %d characters", MaxReportDescription))
	}
	return nil
}

// ReportWithReporter is a report annotated with the reporter's username
type ReportWithReporter struct {
	FountainReport
	Username *string `json:"username"`
}
