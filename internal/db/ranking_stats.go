package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rankguard/internal/models"
)

// CreateTrackedKeyword adds a keyword to a campaign's ranking tracker.
func (d *DB) CreateTrackedKeyword(ctx context.Context, kw *models.TrackedKeyword) error {
	return d.Pool.QueryRow(ctx, `
		INSERT INTO tracked_keywords (campaign_id, keyword)
		VALUES ($1, $2)
		ON CONFLICT (campaign_id, keyword) DO UPDATE SET keyword = EXCLUDED.keyword
		RETURNING id, created_at
	`, kw.CampaignID, kw.Keyword).Scan(&kw.ID, &kw.CreatedAt)
}

// GetTrackedKeyword retrieves a tracked keyword by ID.
func (d *DB) GetTrackedKeyword(ctx context.Context, id uuid.UUID) (*models.TrackedKeyword, error) {
	var kw models.TrackedKeyword
	err := d.Pool.QueryRow(ctx, `
		SELECT id, campaign_id, keyword, created_at
		FROM tracked_keywords WHERE id = $1
	`, id).Scan(&kw.ID, &kw.CampaignID, &kw.Keyword, &kw.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeywordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kw, nil
}

// UpsertRankingSample records one day of ranking data, replacing any existing sample for that day.
func (d *DB) UpsertRankingSample(ctx context.Context, keywordID uuid.UUID, s models.RankingDailySample) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO keyword_ranking_stats (keyword_id, date, average_rank, search_volume, top_ranking_page_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (keyword_id, date) DO UPDATE SET
			average_rank = EXCLUDED.average_rank,
			search_volume = EXCLUDED.search_volume,
			top_ranking_page_url = EXCLUDED.top_ranking_page_url
	`, keywordID, s.Date, s.AverageRank, s.SearchVolume, s.TopRankingPageURL)
	return err
}

// ListRankingSamples returns a keyword's daily samples within [from, to], oldest first.
func (d *DB) ListRankingSamples(ctx context.Context, keywordID uuid.UUID, from, to time.Time) ([]models.RankingDailySample, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT date, average_rank, search_volume, top_ranking_page_url
		FROM keyword_ranking_stats
		WHERE keyword_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, keywordID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.RankingDailySample
	for rows.Next() {
		var s models.RankingDailySample
		if err := rows.Scan(&s.Date, &s.AverageRank, &s.SearchVolume, &s.TopRankingPageURL); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
