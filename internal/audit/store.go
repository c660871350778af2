package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rankguard/internal/models"
)

// CampaignLookup resolves a campaign together with its linked Google account.
// Missing campaigns return db.ErrCampaignNotFound; a campaign without a usable
// account returns db.ErrAccountNotFound.
type CampaignLookup interface {
	GetCampaignWithAccount(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
}

// DataProvider fetches raw search performance rows for a site and window.
type DataProvider interface {
	FetchRows(ctx context.Context, site string, account *models.GoogleAccount, start, end time.Time, dimensions []string) ([]models.PerformanceRow, error)
}

// StatusUpdate carries the fields written alongside a status transition.
type StatusUpdate = models.AuditStatusUpdate

// Store persists audit runs and their results.
type Store interface {
	CreateAuditRun(ctx context.Context, run *models.AuditRun) error
	// UpdateAuditRunStatus moves a run from one status to the next and fails
	// with db.ErrInvalidTransition when the stored status is not from.
	UpdateAuditRunStatus(ctx context.Context, id uuid.UUID, from, to models.AuditStatus, update StatusUpdate) error
	// SaveAuditResults inserts all results and competing pages atomically.
	SaveAuditResults(ctx context.Context, runID uuid.UUID, results []models.CannibalizationResult) error
	// FindLatestCompletedOverlapping returns db.ErrAuditRunNotFound when no
	// completed run overlaps [start, end].
	FindLatestCompletedOverlapping(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*models.AuditRun, error)
	ListAuditResults(ctx context.Context, runID uuid.UUID, limit int) ([]models.CannibalizationResult, error)
	ListAuditRuns(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.AuditRun, error)
	ListPendingAuditRuns(ctx context.Context, before time.Time, limit int) ([]models.AuditRun, error)
}

// Recorder observes audit outcomes for metrics.
type Recorder interface {
	ObserveRows(fetched, kept int)
	ObserveRun(status models.AuditStatus, duration time.Duration, cannibalized int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRows(int, int) {}
func (nopRecorder) ObserveRun(models.AuditStatus, time.Duration, int) {}
