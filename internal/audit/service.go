// Package audit runs cannibalization audits for a campaign as tracked,
// status-driven units of work and serves their results.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rankguard/internal/cannibalization"
	"rankguard/internal/db"
	"rankguard/internal/models"
)

var (
	// ErrNotFound wraps missing campaign or account errors. No run is created.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange is returned when start is after end.
	ErrInvalidRange = errors.New("start date must not be after end date")
)

// History limits
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var fetchDimensions = []string{models.DimensionDate, models.DimensionQuery, models.DimensionPage}

// Service is the audit run controller.
type Service struct {
	campaigns CampaignLookup
	provider  DataProvider
	store     Store
	log       zerolog.Logger
	recorder  Recorder
	threshold float64
	windows   Windows
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithThreshold sets the overlap threshold percentage.
func WithThreshold(pct float64) Option {
	return func(s *Service) { s.threshold = pct }
}

// WithWindows overrides the preset windows.
func WithWindows(w Windows) Option {
	return func(s *Service) { s.windows = w }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an audit service.
func NewService(campaigns CampaignLookup, provider DataProvider, store Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		campaigns: campaigns,
		provider:  provider,
		store:     store,
		log:       log.With().Str("component", "audit").Logger(),
		recorder:  nopRecorder{},
		threshold: cannibalization.DefaultThreshold,
		windows:   DefaultWindows,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending is a created run waiting to be executed.
type Pending struct {
	Run      *models.AuditRun
	campaign *models.Campaign
}

// Create resolves the campaign and records a PENDING run for [start, end].
func (s *Service) Create(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*Pending, error) {
	start, end = dayUTC(start), dayUTC(end)
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	campaign, err := s.resolve(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	run := &models.AuditRun{
		CampaignID: campaign.ID,
		StartDate:  start,
		EndDate:    end,
		Status:     models.AuditPending,
	}
	if err := s.store.CreateAuditRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create audit run: %w", err)
	}

	s.log.Info().
		Str("audit_id", run.ID.String()).
		Str("campaign_id", campaign.ID.String()).
		Str("start", start.Format(models.DateLayout)).
		Str("end", end.Format(models.DateLayout)).
		Msg("audit run created")

	return &Pending{Run: run, campaign: campaign}, nil
}

func (s *Service) resolve(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetCampaignWithAccount(ctx, campaignID)
	if err != nil {
		if errors.Is(err, db.ErrCampaignNotFound) || errors.Is(err, db.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("resolve campaign: %w", err)
	}
	if campaign.GoogleAccount == nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, db.ErrAccountNotFound)
	}
	return campaign, nil
}

// PendingRuns lists stored runs still PENDING that were created before cutoff,
// oldest first.
func (s *Service) PendingRuns(ctx context.Context, before time.Time, limit int) ([]models.AuditRun, error) {
	runs, err := s.store.ListPendingAuditRuns(ctx, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending audit runs: %w", err)
	}
	return runs, nil
}

// Resume rebuilds a Pending for a stored PENDING run, such as one left queued
// by a previous process. Its campaign is resolved again when it executes.
func (s *Service) Resume(run models.AuditRun) (*Pending, error) {
	if run.Status != models.AuditPending {
		return nil, fmt.Errorf("%w: run %s is %s", db.ErrInvalidTransition, run.ID, run.Status)
	}
	return &Pending{Run: &run}, nil
}

// Execute moves a pending run to RUNNING, fetches and analyzes the window,
// persists the findings and finishes COMPLETED. Any failure after the run
// starts marks it FAILED and is returned. If the run cannot be started it
// stays PENDING for a later Resume.
func (s *Service) Execute(ctx context.Context, p *Pending) (err error) {
	run := p.Run
	started := s.now()
	log := s.log.With().Str("audit_id", run.ID.String()).Str("campaign_id", run.CampaignID.String()).Logger()

	if err := s.transition(ctx, run, models.AuditRunning, StatusUpdate{}); err != nil {
		log.Error().Err(err).Msg("failed to start audit run")
		return err
	}

	defer func() {
		if err == nil {
			return
		}
		msg := err.Error()
		// The failure must be recorded even if the caller's context is gone.
		if terr := s.transition(context.WithoutCancel(ctx), run, models.AuditFailed, StatusUpdate{Error: &msg}); terr != nil {
			log.Error().Err(terr).Msg("failed to mark audit run failed")
		}
		s.recorder.ObserveRun(models.AuditFailed, s.now().Sub(started), 0)
		log.Error().Err(err).Msg("audit run failed")
	}()

	if p.campaign == nil {
		campaign, err := s.resolve(ctx, run.CampaignID)
		if err != nil {
			return err
		}
		p.campaign = campaign
	}

	rows, err := s.provider.FetchRows(ctx, p.campaign.SearchConsoleSite, p.campaign.GoogleAccount, run.StartDate, run.EndDate, fetchDimensions)
	if err != nil {
		return fmt.Errorf("fetch search analytics: %w", err)
	}

	filter := cannibalization.NewFilter(p.campaign.Keywords, p.campaign.SearchConsoleSite, run.StartDate, run.EndDate)
	aggregates := cannibalization.Normalize(rows, filter)
	s.recorder.ObserveRows(len(rows), len(aggregates))

	if len(aggregates) == 0 {
		log.Info().Int("rows", len(rows)).Msg("no matching rows, completing empty audit")
		return s.complete(ctx, run, nil, started)
	}

	results := cannibalization.ToResults(cannibalization.Analyze(aggregates, s.threshold))
	if len(results) > 0 {
		if err := s.store.SaveAuditResults(ctx, run.ID, results); err != nil {
			return fmt.Errorf("save audit results: %w", err)
		}
	}
	return s.complete(ctx, run, results, started)
}

func (s *Service) complete(ctx context.Context, run *models.AuditRun, results []models.CannibalizationResult, started time.Time) error {
	cannibalized := 0
	for _, r := range results {
		if len(r.CompetingPages) > 1 {
			cannibalized++
		}
	}
	update := StatusUpdate{TotalKeywords: len(results), CannibalizationCount: cannibalized}
	if err := s.transition(ctx, run, models.AuditCompleted, update); err != nil {
		return err
	}

	s.recorder.ObserveRun(models.AuditCompleted, s.now().Sub(started), cannibalized)
	s.log.Info().
		Str("audit_id", run.ID.String()).
		Int("total_keywords", run.TotalKeywords).
		Int("cannibalization_count", run.CannibalizationCount).
		Msg("audit run completed")
	return nil
}

func (s *Service) transition(ctx context.Context, run *models.AuditRun, to models.AuditStatus, update StatusUpdate) error {
	if !run.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", db.ErrInvalidTransition, run.Status, to)
	}
	if err := s.store.UpdateAuditRunStatus(ctx, run.ID, run.Status, to, update); err != nil {
		return fmt.Errorf("update audit run to %s: %w", to, err)
	}
	run.Status = to
	run.TotalKeywords = update.TotalKeywords
	run.CannibalizationCount = update.CannibalizationCount
	run.Error = update.Error
	return nil
}

// RunAudit creates and executes a run synchronously.
func (s *Service) RunAudit(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*models.AuditRun, error) {
	p, err := s.Create(ctx, campaignID, start, end)
	if err != nil {
		return nil, err
	}
	if err := s.Execute(ctx, p); err != nil {
		return p.Run, err
	}
	return p.Run, nil
}

// PresetRange returns the window for a preset ending today.
func (s *Service) PresetRange(p Preset) (time.Time, time.Time) {
	return s.windows.Range(p, s.now())
}

// RunInitial audits the last three months.
func (s *Service) RunInitial(ctx context.Context, campaignID uuid.UUID) (*models.AuditRun, error) {
	start, end := s.PresetRange(PresetInitial)
	return s.RunAudit(ctx, campaignID, start, end)
}

// RunScheduled audits the last two weeks.
func (s *Service) RunScheduled(ctx context.Context, campaignID uuid.UUID) (*models.AuditRun, error) {
	start, end := s.PresetRange(PresetScheduled)
	return s.RunAudit(ctx, campaignID, start, end)
}

// GetResults returns the most recently created completed run overlapping the
// requested window, with up to limit results. Missing bounds default to the
// last three months. It returns nil when no run qualifies or the run found no
// cannibalization.
func (s *Service) GetResults(ctx context.Context, campaignID uuid.UUID, limit int, start, end *time.Time) (*models.AuditRunWithResults, error) {
	reqEnd := dayUTC(s.now())
	if end != nil {
		reqEnd = dayUTC(*end)
	}
	reqStart := reqEnd.AddDate(0, -s.windows.ResultsMonths, 0)
	if start != nil {
		reqStart = dayUTC(*start)
	}
	if reqStart.After(reqEnd) {
		return nil, ErrInvalidRange
	}

	run, err := s.store.FindLatestCompletedOverlapping(ctx, campaignID, reqStart, reqEnd)
	if errors.Is(err, db.ErrAuditRunNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find audit run: %w", err)
	}

	results, err := s.store.ListAuditResults(ctx, run.ID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit results: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &models.AuditRunWithResults{AuditRun: *run, Results: results}, nil
}

// GetAuditHistory lists a campaign's runs, most recent first.
func (s *Service) GetAuditHistory(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.AuditRunSummary, error) {
	runs, err := s.store.ListAuditRuns(ctx, campaignID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}
	out := make([]models.AuditRunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, models.NewAuditRunSummary(r))
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
