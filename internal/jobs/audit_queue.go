package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rankguard/internal/audit"
	"rankguard/internal/models"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("audit queue is full")

// Runner creates, resumes and executes audit runs.
type Runner interface {
	Create(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*audit.Pending, error)
	Execute(ctx context.Context, p *audit.Pending) error
	PresetRange(p audit.Preset) (time.Time, time.Time)
	PendingRuns(ctx context.Context, before time.Time, limit int) ([]models.AuditRun, error)
	Resume(run models.AuditRun) (*audit.Pending, error)
}

// AuditQueue hands audit runs to a fixed pool of workers. The run record is
// created before Submit returns so callers get its id immediately. Runs left
// PENDING by an earlier process are picked up again by Recover.
type AuditQueue struct {
	runner  Runner
	jobs    chan *audit.Pending
	slots   chan struct{}
	workers int
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
	now     func() time.Time

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{} // queued or executing
}

// NewAuditQueue creates a queue holding up to size pending runs.
func NewAuditQueue(runner Runner, workers, size int, timeout time.Duration, log zerolog.Logger) *AuditQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	return &AuditQueue{
		runner:   runner,
		jobs:     make(chan *audit.Pending, size),
		slots:    make(chan struct{}, size),
		workers:  workers,
		timeout:  timeout,
		log:      log.With().Str("component", "audit_queue").Logger(),
		now:      time.Now,
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Submit creates a PENDING run for [start, end] and queues it. A slot is
// reserved first so a full queue never leaves an orphaned run behind.
func (q *AuditQueue) Submit(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*models.AuditRun, error) {
	select {
	case q.slots <- struct{}{}:
	default:
		return nil, ErrQueueFull
	}

	p, err := q.runner.Create(ctx, campaignID, start, end)
	if err != nil {
		<-q.slots
		return nil, err
	}

	if !q.track(p.Run.ID) {
		// Recover already queued it.
		<-q.slots
		return p.Run, nil
	}
	q.jobs <- p
	return p.Run, nil
}

// Recover queues stored PENDING runs created before cutoff that this queue is
// not already holding. It stops when the queue is full and returns how many
// runs it queued.
func (q *AuditQueue) Recover(ctx context.Context, before time.Time) int {
	runs, err := q.runner.PendingRuns(ctx, before, cap(q.jobs))
	if err != nil {
		q.log.Error().Err(err).Msg("failed to list pending audit runs")
		return 0
	}

	queued := 0
	for _, run := range runs {
		if q.tracked(run.ID) {
			continue
		}
		p, err := q.runner.Resume(run)
		if err != nil {
			q.log.Warn().Err(err).Str("audit_id", run.ID.String()).Msg("cannot resume audit run")
			continue
		}

		select {
		case q.slots <- struct{}{}:
		default:
			q.log.Warn().Int("queued", queued).Int("pending", len(runs)).Msg("audit queue full, deferring pending runs")
			return queued
		}
		if !q.track(run.ID) {
			<-q.slots
			continue
		}
		q.jobs <- p
		queued++
	}

	if queued > 0 {
		q.log.Info().Int("runs", queued).Msg("requeued pending audit runs")
	}
	return queued
}

func (q *AuditQueue) track(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[id]; ok {
		return false
	}
	q.inflight[id] = struct{}{}
	return true
}

func (q *AuditQueue) tracked(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inflight[id]
	return ok
}

func (q *AuditQueue) untrack(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, id)
}

// SubmitPreset queues a run over a preset window.
func (q *AuditQueue) SubmitPreset(ctx context.Context, campaignID uuid.UUID, preset audit.Preset) (*models.AuditRun, error) {
	start, end := q.runner.PresetRange(preset)
	return q.Submit(ctx, campaignID, start, end)
}

// Len returns the number of queued runs not yet picked up by a worker.
func (q *AuditQueue) Len() int {
	return len(q.jobs)
}

// Start runs the workers until ctx is cancelled and they have finished their
// current run. Runs already PENDING when it starts are queued again first.
// Runs still queued at shutdown stay PENDING and are recovered on the next start.
func (q *AuditQueue) Start(ctx context.Context) {
	q.log.Info().Int("workers", q.workers).Int("capacity", cap(q.jobs)).Msg("audit queue started")

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			q.work(ctx, id)
		}(i)
	}
	q.Recover(ctx, q.now())
	q.wg.Wait()

	q.log.Info().Int("left_pending", len(q.jobs)).Msg("audit queue stopped")
}

func (q *AuditQueue) work(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-q.jobs:
			<-q.slots
			q.execute(ctx, id, p)
			q.untrack(p.Run.ID)
		}
	}
}

func (q *AuditQueue) execute(ctx context.Context, worker int, p *audit.Pending) {
	runCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	// Failures are recorded on the run itself. A run that could not start
	// stays PENDING for Recover.
	if err := q.runner.Execute(runCtx, p); err != nil {
		q.log.Warn().Err(err).Int("worker", worker).Str("audit_id", p.Run.ID.String()).Msg("queued audit failed")
	}
}
