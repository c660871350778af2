package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rankguard/internal/audit"
	"rankguard/internal/models"
)

// CampaignSource lists campaigns whose last audit is older than a cutoff.
type CampaignSource interface {
	ListCampaignsDueForAudit(ctx context.Context, cutoff time.Time, limit int) ([]models.Campaign, error)
}

// PresetSubmitter queues preset audits.
type PresetSubmitter interface {
	SubmitPreset(ctx context.Context, campaignID uuid.UUID, preset audit.Preset) (*models.AuditRun, error)
}

// Scheduler periodically queues scheduled audits for campaigns that are due.
type Scheduler struct {
	campaigns CampaignSource
	queue     PresetSubmitter
	interval  time.Duration
	batch     int
	log       zerolog.Logger
	now       func() time.Time
}

// NewScheduler creates a scheduler that audits each campaign at most once per interval.
func NewScheduler(campaigns CampaignSource, queue PresetSubmitter, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		campaigns: campaigns,
		queue:     queue,
		interval:  interval,
		batch:     50,
		log:       log.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// Start begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	// Run immediately on start
	s.enqueueDue(ctx)

	ticker := time.NewTicker(s.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.enqueueDue(ctx)
		}
	}
}

// tick checks more often than interval so campaigns are picked up soon after they become due.
func (s *Scheduler) tick() time.Duration {
	t := s.interval / 4
	if t < time.Minute {
		t = time.Minute
	}
	return t
}

// enqueueDue queues a scheduled audit for every due campaign until the queue fills.
func (s *Scheduler) enqueueDue(ctx context.Context) int {
	campaigns, err := s.campaigns.ListCampaignsDueForAudit(ctx, s.now().Add(-s.interval), s.batch)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list due campaigns")
		return 0
	}

	queued := 0
	for _, c := range campaigns {
		select {
		case <-ctx.Done():
			return queued
		default:
		}

		run, err := s.queue.SubmitPreset(ctx, c.ID, audit.PresetScheduled)
		if errors.Is(err, ErrQueueFull) {
			s.log.Warn().Int("queued", queued).Msg("audit queue full, deferring remaining campaigns")
			break
		}
		if err != nil {
			s.log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("failed to queue scheduled audit")
			continue
		}
		queued++
		s.log.Debug().Str("campaign_id", c.ID.String()).Str("audit_id", run.ID.String()).Msg("scheduled audit queued")
	}

	if queued > 0 {
		s.log.Info().Int("queued", queued).Msg("scheduled audits queued")
	}
	return queued
}
