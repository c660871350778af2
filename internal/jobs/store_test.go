package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rankguard/internal/db"
	"rankguard/internal/models"
)

// memAudits backs a real audit.Service in queue tests. Like a database it
// rejects calls made with a cancelled context.
type memAudits struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*models.Campaign
	runs      map[uuid.UUID]*models.AuditRun
	clock     time.Time
}

func newMemAudits() *memAudits {
	return &memAudits{
		campaigns: make(map[uuid.UUID]*models.Campaign),
		runs:      make(map[uuid.UUID]*models.AuditRun),
		clock:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memAudits) addCampaign() *models.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Campaign{
		ID:                uuid.New(),
		Keywords:          "boots",
		SearchConsoleSite: "example.com",
		GoogleAccount:     &models.GoogleAccount{ID: uuid.New()},
	}
	m.campaigns[c.ID] = c
	return c
}

func (m *memAudits) status(id uuid.UUID) models.AuditStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		return r.Status
	}
	return ""
}

func (m *memAudits) GetCampaignWithAccount(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, db.ErrCampaignNotFound
	}
	return c, nil
}

func (m *memAudits) FetchRows(ctx context.Context, site string, account *models.GoogleAccount, start, end time.Time, dimensions []string) ([]models.PerformanceRow, error) {
	return nil, ctx.Err()
}

func (m *memAudits) CreateAuditRun(ctx context.Context, run *models.AuditRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	run.CreatedAt = m.clock
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memAudits) UpdateAuditRunStatus(ctx context.Context, id uuid.UUID, from, to models.AuditStatus, u models.AuditStatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return db.ErrAuditRunNotFound
	}
	if r.Status != from {
		return db.ErrInvalidTransition
	}
	r.Status = to
	r.TotalKeywords = u.TotalKeywords
	r.CannibalizationCount = u.CannibalizationCount
	r.Error = u.Error
	return nil
}

func (m *memAudits) SaveAuditResults(ctx context.Context, runID uuid.UUID, results []models.CannibalizationResult) error {
	return ctx.Err()
}

func (m *memAudits) FindLatestCompletedOverlapping(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*models.AuditRun, error) {
	return nil, db.ErrAuditRunNotFound
}

func (m *memAudits) ListAuditResults(ctx context.Context, runID uuid.UUID, limit int) ([]models.CannibalizationResult, error) {
	return nil, ctx.Err()
}

func (m *memAudits) ListAuditRuns(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.AuditRun, error) {
	return nil, ctx.Err()
}

func (m *memAudits) ListPendingAuditRuns(ctx context.Context, before time.Time, limit int) ([]models.AuditRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditRun
	for _, r := range m.runs {
		if r.Status == models.AuditPending && r.CreatedAt.Before(before) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
