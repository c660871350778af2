package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rankguard/internal/db"
	"rankguard/internal/models"
)

// ErrKeywordNotFound is returned when the keyword is not tracked by the campaign.
var ErrKeywordNotFound = db.ErrKeywordNotFound

// DefaultMonths is how many months the ranking read path returns by default.
const DefaultMonths = 6

// Store is the read-only source of tracked keywords and their daily samples.
type Store interface {
	GetCampaignByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetTrackedKeyword(ctx context.Context, id uuid.UUID) (*models.TrackedKeyword, error)
	ListRankingSamples(ctx context.Context, keywordID uuid.UUID, from, to time.Time) ([]models.RankingDailySample, error)
}

// Service serves monthly rankings and initial-rank baselines.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a ranking service. now defaults to time.Now.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// KeywordRankings returns the last months monthly summaries (oldest first) and
// the initial rank for a tracked keyword. Months without data have a nil
// summary; an unknown initial rank is reported as 0.
func (s *Service) KeywordRankings(ctx context.Context, campaignID, keywordID uuid.UUID, months int) (*models.KeywordRankingResponse, error) {
	if months <= 0 {
		months = DefaultMonths
	}

	kw, err := s.store.GetTrackedKeyword(ctx, keywordID)
	if err != nil {
		return nil, err
	}
	if kw.CampaignID != campaignID {
		return nil, ErrKeywordNotFound
	}
	campaign, err := s.store.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	first := monthStart(now).AddDate(0, -(months - 1), 0)
	from := first
	baselineFrom := dayUTC(campaign.StartDate).AddDate(0, 0, -InitialRankDays)
	if !campaign.StartDate.IsZero() && baselineFrom.Before(from) {
		from = baselineFrom
	}

	samples, err := s.store.ListRankingSamples(ctx, keywordID, from, dayUTC(now))
	if err != nil {
		return nil, fmt.Errorf("list ranking samples: %w", err)
	}

	resp := &models.KeywordRankingResponse{
		KeywordID: kw.ID,
		Keyword:   kw.Keyword,
		Months:    make([]models.MonthlyRanking, 0, months),
	}
	if initial, ok := InitialRank(samples, campaign.StartDate); ok {
		resp.InitialRank = Round2(initial.AveragePosition)
	}

	for i := 0; i < months; i++ {
		month := first.AddDate(0, i, 0)
		entry := models.MonthlyRanking{Month: month.Format("2006-01")}
		if summary, ok := MonthlySummary(samples, month, now); ok {
			summary.AveragePosition = Round2(summary.AveragePosition)
			entry.Summary = &summary
		}
		resp.Months = append(resp.Months, entry)
	}
	return resp, nil
}
