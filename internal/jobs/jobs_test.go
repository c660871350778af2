package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rankguard/internal/audit"
	"rankguard/internal/models"
)

type fakeRunner struct {
	mu        sync.Mutex
	created   int
	createErr error
	executed  chan uuid.UUID
	pending   []models.AuditRun
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{executed: make(chan uuid.UUID, 16)}
}

func (f *fakeRunner) Create(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*audit.Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &audit.Pending{Run: &models.AuditRun{
		ID:         uuid.New(),
		CampaignID: campaignID,
		StartDate:  start,
		EndDate:    end,
		Status:     models.AuditPending,
	}}, nil
}

func (f *fakeRunner) Execute(ctx context.Context, p *audit.Pending) error {
	f.executed <- p.Run.ID
	return nil
}

func (f *fakeRunner) PresetRange(p audit.Preset) (time.Time, time.Time) {
	return audit.DefaultWindows.Range(p, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
}

func (f *fakeRunner) PendingRuns(ctx context.Context, before time.Time, limit int) ([]models.AuditRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]models.AuditRun(nil), f.pending...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRunner) Resume(run models.AuditRun) (*audit.Pending, error) {
	return &audit.Pending{Run: &run}, nil
}

func TestAuditQueue_Full(t *testing.T) {
	runner := newFakeRunner()
	q := NewAuditQueue(runner, 1, 1, time.Minute, zerolog.Nop())
	ctx := context.Background()

	run, err := q.Submit(ctx, uuid.New(), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if run.Status != models.AuditPending {
		t.Errorf("Status = %s, want PENDING", run.Status)
	}

	if _, err := q.Submit(ctx, uuid.New(), time.Now(), time.Now()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit() error = %v, want ErrQueueFull", err)
	}
	if runner.created != 1 {
		t.Errorf("created = %d, want 1: a full queue must not create runs", runner.created)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestAuditQueue_CreateErrorReleasesSlot(t *testing.T) {
	runner := newFakeRunner()
	runner.createErr = audit.ErrNotFound
	q := NewAuditQueue(runner, 1, 1, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, err := q.Submit(ctx, uuid.New(), time.Now(), time.Now()); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("Submit() error = %v, want ErrNotFound", err)
	}

	runner.createErr = nil
	if _, err := q.Submit(ctx, uuid.New(), time.Now(), time.Now()); err != nil {
		t.Errorf("Submit() after failed create error = %v", err)
	}
}

func TestAuditQueue_Executes(t *testing.T) {
	runner := newFakeRunner()
	q := NewAuditQueue(runner, 2, 4, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Start(ctx)
		close(done)
	}()

	want := make(map[uuid.UUID]bool)
	for i := 0; i < 3; i++ {
		run, err := q.SubmitPreset(ctx, uuid.New(), audit.PresetScheduled)
		if err != nil {
			t.Fatalf("SubmitPreset() error = %v", err)
		}
		if !run.StartDate.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("StartDate = %v, want scheduled preset start", run.StartDate)
		}
		want[run.ID] = true
	}

	for i := 0; i < 3; i++ {
		select {
		case id := <-runner.executed:
			if !want[id] {
				t.Errorf("executed unknown run %s", id)
			}
			delete(want, id)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for execution")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not stop")
	}
}

func TestAuditQueue_RecoverSkipsQueuedRuns(t *testing.T) {
	runner := newFakeRunner()
	q := NewAuditQueue(runner, 1, 4, time.Minute, zerolog.Nop())
	ctx := context.Background()

	run, err := q.Submit(ctx, uuid.New(), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	orphan := models.AuditRun{ID: uuid.New(), Status: models.AuditPending}
	runner.pending = []models.AuditRun{*run, orphan}

	if got := q.Recover(ctx, time.Now()); got != 1 {
		t.Errorf("Recover() = %d, want 1", got)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	if got := q.Recover(ctx, time.Now()); got != 0 {
		t.Errorf("second Recover() = %d, want 0", got)
	}
}

func TestAuditQueue_RecoverStopsWhenFull(t *testing.T) {
	runner := newFakeRunner()
	for i := 0; i < 3; i++ {
		runner.pending = append(runner.pending, models.AuditRun{ID: uuid.New(), Status: models.AuditPending})
	}
	q := NewAuditQueue(runner, 1, 2, time.Minute, zerolog.Nop())

	if got := q.Recover(context.Background(), time.Now()); got != 2 {
		t.Errorf("Recover() = %d, want 2", got)
	}
	if _, err := q.Submit(context.Background(), uuid.New(), time.Now(), time.Now()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit() error = %v, want ErrQueueFull", err)
	}
}

func TestAuditQueue_RestartCompletesQueuedRun(t *testing.T) {
	store := newMemAudits()
	campaign := store.addCampaign()
	svc := audit.NewService(store, store, store, zerolog.Nop())
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// The first queue shuts down while the run is still queued.
	first := NewAuditQueue(svc, 1, 4, time.Minute, zerolog.Nop())
	run, err := first.Submit(context.Background(), campaign.ID, day, day)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	stopped, cancel := context.WithCancel(context.Background())
	cancel()
	first.Start(stopped)

	if got := store.status(run.ID); got != models.AuditPending {
		t.Fatalf("status after shutdown = %s, want PENDING", got)
	}

	second := NewAuditQueue(svc, 1, 4, time.Minute, zerolog.Nop())
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		second.Start(ctx)
		close(done)
	}()
	defer func() {
		stop()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	for store.status(run.ID) != models.AuditCompleted {
		select {
		case <-deadline:
			t.Fatalf("status = %s, want COMPLETED after restart", store.status(run.ID))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

type fakeCampaignSource struct {
	campaigns []models.Campaign
	cutoff    time.Time
}

func (f *fakeCampaignSource) ListCampaignsDueForAudit(ctx context.Context, cutoff time.Time, limit int) ([]models.Campaign, error) {
	f.cutoff = cutoff
	return f.campaigns, nil
}

type fakeSubmitter struct {
	capacity int
	queued   []uuid.UUID
	failFor  uuid.UUID
}

func (f *fakeSubmitter) SubmitPreset(ctx context.Context, campaignID uuid.UUID, preset audit.Preset) (*models.AuditRun, error) {
	if preset != audit.PresetScheduled {
		return nil, errors.New("unexpected preset")
	}
	if campaignID == f.failFor {
		return nil, audit.ErrNotFound
	}
	if len(f.queued) >= f.capacity {
		return nil, ErrQueueFull
	}
	f.queued = append(f.queued, campaignID)
	return &models.AuditRun{ID: uuid.New(), CampaignID: campaignID}, nil
}

func TestScheduler_EnqueueDue(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	source := &fakeCampaignSource{}
	for _, id := range ids {
		source.campaigns = append(source.campaigns, models.Campaign{ID: id})
	}

	tests := []struct {
		name       string
		capacity   int
		failFor    uuid.UUID
		wantQueued int
	}{
		{"all queued", 10, uuid.Nil, 4},
		{"stops when full", 2, uuid.Nil, 2},
		{"skips failing campaign", 10, ids[1], 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{capacity: tt.capacity, failFor: tt.failFor}
			s := NewScheduler(source, sub, 24*time.Hour, zerolog.Nop())
			now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
			s.now = func() time.Time { return now }

			if got := s.enqueueDue(context.Background()); got != tt.wantQueued {
				t.Errorf("enqueueDue() = %d, want %d", got, tt.wantQueued)
			}
			if !source.cutoff.Equal(now.Add(-24 * time.Hour)) {
				t.Errorf("cutoff = %v, want one interval ago", source.cutoff)
			}
		})
	}
}

func TestScheduler_Tick(t *testing.T) {
	tests := []struct {
		interval, want time.Duration
	}{
		{24 * time.Hour, 6 * time.Hour},
		{2 * time.Minute, time.Minute},
	}
	for _, tt := range tests {
		s := NewScheduler(nil, nil, tt.interval, zerolog.Nop())
		if got := s.tick(); got != tt.want {
			t.Errorf("tick() for %v = %v, want %v", tt.interval, got, tt.want)
		}
	}
}

type fakeRecoverer struct {
	before time.Time
	calls  int
}

func (f *fakeRecoverer) Recover(ctx context.Context, before time.Time) int {
	f.before = before
	f.calls++
	return 0
}

type fakeStaleStore struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakeStaleStore) FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestReaper_Reap(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeStaleStore{n: 3}
	pending := &fakeRecoverer{}
	r := NewReaper(store, pending, 20*time.Minute, zerolog.Nop())
	r.now = func() time.Time { return now }

	if got := r.reap(context.Background()); got != 3 {
		t.Errorf("reap() = %d, want 3", got)
	}
	if !store.cutoff.Equal(now.Add(-20 * time.Minute)) {
		t.Errorf("cutoff = %v, want maxAge ago", store.cutoff)
	}
	if pending.calls != 1 || !pending.before.Equal(store.cutoff) {
		t.Errorf("Recover calls = %d before %v, want 1 with the stale cutoff", pending.calls, pending.before)
	}

	store.err = errors.New("db down")
	if got := r.reap(context.Background()); got != 0 {
		t.Errorf("reap() on error = %d, want 0", got)
	}
}
