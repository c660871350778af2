package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAcceptedResponse is returned when an audit has been queued.
type AuditAcceptedResponse struct {
	ID     uuid.UUID   `json:"id"`
	Status AuditStatus `json:"status"`
}

// AuditRunSummary is a history entry without nested results.
type AuditRunSummary struct {
	ID                   uuid.UUID   `json:"id"`
	StartDate            string      `json:"start_date"`
	EndDate              string      `json:"end_date"`
	Status               AuditStatus `json:"status"`
	TotalKeywords        int         `json:"total_keywords"`
	CannibalizationCount int         `json:"cannibalization_count"`
	CreatedAt            time.Time   `json:"created_at"`
}

// NewAuditRunSummary builds a summary from a run.
func NewAuditRunSummary(r AuditRun) AuditRunSummary {
	return AuditRunSummary{
		ID:                   r.ID,
		StartDate:            r.StartDate.Format(DateLayout),
		EndDate:              r.EndDate.Format(DateLayout),
		Status:               r.Status,
		TotalKeywords:        r.TotalKeywords,
		CannibalizationCount: r.CannibalizationCount,
		CreatedAt:            r.CreatedAt,
	}
}

// KeywordRankingResponse contains monthly rankings and the initial baseline for a keyword.
type KeywordRankingResponse struct {
	KeywordID   uuid.UUID        `json:"keyword_id"`
	Keyword     string           `json:"keyword"`
	InitialRank float64          `json:"initial_rank"`
	Months      []MonthlyRanking `json:"months"`
}

// DateLayout is the calendar-date format used across the API and Search Console.
const DateLayout = "2006-01-02"
