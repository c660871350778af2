package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditStatus is the lifecycle state of a cannibalization audit run.
type AuditStatus string

// Audit status constants
const (
	AuditPending   AuditStatus = "PENDING"
	AuditRunning   AuditStatus = "RUNNING"
	AuditCompleted AuditStatus = "COMPLETED"
	AuditFailed    AuditStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s AuditStatus) IsTerminal() bool {
	return s == AuditCompleted || s == AuditFailed
}

// CanTransitionTo reports whether s may advance to next.
// Runs only move PENDING -> RUNNING -> COMPLETED|FAILED.
func (s AuditStatus) CanTransitionTo(next AuditStatus) bool {
	switch s {
	case AuditPending:
		return next == AuditRunning
	case AuditRunning:
		return next == AuditCompleted || next == AuditFailed
	default:
		return false
	}
}

// AuditRun is one execution of the cannibalization pipeline over a campaign and window.
type AuditRun struct {
	ID                   uuid.UUID   `json:"id"`
	CampaignID           uuid.UUID   `json:"campaign_id"`
	StartDate            time.Time   `json:"start_date"`
	EndDate              time.Time   `json:"end_date"`
	Status               AuditStatus `json:"status"`
	TotalKeywords        int         `json:"total_keywords"`
	CannibalizationCount int         `json:"cannibalization_count"`
	Error                *string     `json:"error,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// AuditStatusUpdate carries the fields written alongside a status transition.
type AuditStatusUpdate struct {
	TotalKeywords        int
	CannibalizationCount int
	Error                *string
}

// CannibalizationResult is one keyword's outcome within a run.
type CannibalizationResult struct {
	ID                 uuid.UUID       `json:"id"`
	AuditID            uuid.UUID       `json:"audit_id"`
	Keyword            string          `json:"keyword"`
	TopPageURL         string          `json:"top_page_url"`
	TopPageImpressions int64           `json:"top_page_impressions"`
	CompetingPages     []CompetingPage `json:"competing_pages"`
	CreatedAt          time.Time       `json:"created_at"`
}

// CompetingPage is one page competing for a keyword, ordered by overlap descending.
type CompetingPage struct {
	ID                uuid.UUID `json:"id"`
	ResultID          uuid.UUID `json:"result_id"`
	PageURL           string    `json:"page_url"`
	Impressions       int64     `json:"impressions"`
	OverlapPercentage float64   `json:"overlap_percentage"`
}

// AuditRunWithResults is a run with its nested results.
type AuditRunWithResults struct {
	AuditRun
	Results []CannibalizationResult `json:"results"`
}
