package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rankguard/internal/models"
)

const auditRunColumns = `id, campaign_id, start_date, end_date, status, total_keywords,
	cannibalization_count, error, created_at, updated_at`

func auditRunFields(r *models.AuditRun) []any {
	return []any{
		&r.ID,
		&r.CampaignID,
		&r.StartDate,
		&r.EndDate,
		&r.Status,
		&r.TotalKeywords,
		&r.CannibalizationCount,
		&r.Error,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

// CreateAuditRun inserts a run. Runs are never deduplicated.
func (d *DB) CreateAuditRun(ctx context.Context, run *models.AuditRun) error {
	query := `
		INSERT INTO cannibalization_audits (campaign_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	status := run.Status
	if status == "" {
		status = models.AuditPending
	}

	err := d.Pool.QueryRow(ctx, query,
		run.CampaignID,
		run.StartDate,
		run.EndDate,
		status,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return err
	}
	run.Status = status
	return nil
}

// GetAuditRun retrieves a run by ID.
func (d *DB) GetAuditRun(ctx context.Context, id uuid.UUID) (*models.AuditRun, error) {
	query := `SELECT ` + auditRunColumns + ` FROM cannibalization_audits WHERE id = $1`

	var r models.AuditRun
	err := d.Pool.QueryRow(ctx, query, id).Scan(auditRunFields(&r)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAuditRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateAuditRunStatus moves a run from one status to another. The update only
// applies while the stored status still equals from.
func (d *DB) UpdateAuditRunStatus(ctx context.Context, id uuid.UUID, from, to models.AuditStatus, update models.AuditStatusUpdate) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	result, err := d.Pool.Exec(ctx, `
		UPDATE cannibalization_audits
		SET status = $3, total_keywords = $4, cannibalization_count = $5, error = $6, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to, update.TotalKeywords, update.CannibalizationCount, update.Error)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := d.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cannibalization_audits WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrAuditRunNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// SaveAuditResults inserts all results and their competing pages in one transaction.
func (d *DB) SaveAuditResults(ctx context.Context, runID uuid.UUID, results []models.CannibalizationResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range results {
		r := &results[i]
		r.ID = uuid.New()
		r.AuditID = runID
		batch.Queue(`
			INSERT INTO cannibalization_results (id, audit_id, keyword, top_page_url, top_page_impressions)
			VALUES ($1, $2, $3, $4, $5)
		`, r.ID, runID, r.Keyword, r.TopPageURL, r.TopPageImpressions)

		for pos := range r.CompetingPages {
			p := &r.CompetingPages[pos]
			p.ID = uuid.New()
			p.ResultID = r.ID
			batch.Queue(`
				INSERT INTO competing_pages (id, result_id, page_url, impressions, overlap_percentage, position)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, p.ID, r.ID, p.PageURL, p.Impressions, p.OverlapPercentage, pos)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert results: %w", err)
	}

	return tx.Commit(ctx)
}

// FindLatestCompletedOverlapping returns the most recently created completed
// run for a campaign whose window intersects [start, end].
func (d *DB) FindLatestCompletedOverlapping(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*models.AuditRun, error) {
	query := `
		SELECT ` + auditRunColumns + `
		FROM cannibalization_audits
		WHERE campaign_id = $1 AND status = 'COMPLETED'
		AND start_date <= $3 AND end_date >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var r models.AuditRun
	err := d.Pool.QueryRow(ctx, query, campaignID, start, end).Scan(auditRunFields(&r)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAuditRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListAuditResults returns up to limit results for a run, largest top page
// first, each with its competing pages in stored order.
func (d *DB) ListAuditResults(ctx context.Context, runID uuid.UUID, limit int) ([]models.CannibalizationResult, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, audit_id, keyword, top_page_url, top_page_impressions, created_at
		FROM cannibalization_results
		WHERE audit_id = $1
		ORDER BY top_page_impressions DESC, keyword
		LIMIT $2
	`, runID, limit)
	if err != nil {
		return nil, err
	}

	var results []models.CannibalizationResult
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var r models.CannibalizationResult
		if err := rows.Scan(&r.ID, &r.AuditID, &r.Keyword, &r.TopPageURL, &r.TopPageImpressions, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		index[r.ID] = len(results)
		results = append(results, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}

	pageRows, err := d.Pool.Query(ctx, `
		SELECT id, result_id, page_url, impressions, overlap_percentage
		FROM competing_pages
		WHERE result_id = ANY($1)
		ORDER BY result_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer pageRows.Close()

	for pageRows.Next() {
		var p models.CompetingPage
		if err := pageRows.Scan(&p.ID, &p.ResultID, &p.PageURL, &p.Impressions, &p.OverlapPercentage); err != nil {
			return nil, fmt.Errorf("failed to scan competing page: %w", err)
		}
		i := index[p.ResultID]
		results[i].CompetingPages = append(results[i].CompetingPages, p)
	}
	return results, pageRows.Err()
}

// ListAuditRuns returns a campaign's runs, most recent first.
func (d *DB) ListAuditRuns(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.AuditRun, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT `+auditRunColumns+`
		FROM cannibalization_audits
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.AuditRun
	for rows.Next() {
		var r models.AuditRun
		if err := rows.Scan(auditRunFields(&r)...); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListPendingAuditRuns returns PENDING runs created before cutoff, oldest first.
func (d *DB) ListPendingAuditRuns(ctx context.Context, before time.Time, limit int) ([]models.AuditRun, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT `+auditRunColumns+`
		FROM cannibalization_audits
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.AuditRun
	for rows.Next() {
		var r models.AuditRun
		if err := rows.Scan(auditRunFields(&r)...); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountAuditRunsByStatus returns the number of runs in each status for metrics export.
func (d *DB) CountAuditRunsByStatus(ctx context.Context) (map[models.AuditStatus]int64, error) {
	rows, err := d.Pool.Query(ctx, `SELECT status, COUNT(*) FROM cannibalization_audits GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.AuditStatus]int64)
	for rows.Next() {
		var status models.AuditStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// FailStaleRuns marks runs left RUNNING since before cutoff as FAILED, as
// happens when the process exits mid-audit. It returns the number of runs updated.
func (d *DB) FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	result, err := d.Pool.Exec(ctx, `
		UPDATE cannibalization_audits
		SET status = 'FAILED', error = $2, updated_at = NOW()
		WHERE status = 'RUNNING' AND updated_at < $1
	`, cutoff, reason)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
