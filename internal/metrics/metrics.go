package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"rankguard/internal/models"
)

var auditRunsDesc = prometheus.NewDesc(
	"rankguard_audit_runs",
	"Number of stored audit runs by status",
	[]string{"status"},
	nil,
)

// StatusCounter reports how many audit runs are in each status.
type StatusCounter interface {
	CountAuditRunsByStatus(ctx context.Context) (map[models.AuditStatus]int64, error)
}

// AuditRunCollector is a custom Prometheus collector that reads audit run
// counts from the database on each scrape.
type AuditRunCollector struct {
	store StatusCounter
	log   zerolog.Logger
}

// Describe sends the metric descriptor to the channel.
func (c *AuditRunCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- auditRunsDesc
}

// Collect queries the database and emits one gauge per status. Statuses
// without runs are reported as 0.
func (c *AuditRunCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.store.CountAuditRunsByStatus(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to collect audit run metrics")
		return
	}
	for _, status := range []models.AuditStatus{models.AuditPending, models.AuditRunning, models.AuditCompleted, models.AuditFailed} {
		ch <- prometheus.MustNewConstMetric(
			auditRunsDesc,
			prometheus.GaugeValue,
			float64(counts[status]),
			string(status),
		)
	}
}

// Recorder observes audit executions. It implements audit.Recorder.
type Recorder struct {
	duration     *prometheus.HistogramVec
	rows         *prometheus.CounterVec
	cannibalized prometheus.Gauge
}

// Register registers the collectors on reg and returns the recorder.
// queueDepth may be nil.
func Register(reg prometheus.Registerer, store StatusCounter, queueDepth func() float64, log zerolog.Logger) *Recorder {
	r := &Recorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rankguard_audit_duration_seconds",
			Help:    "Audit run execution time by final status",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankguard_search_rows_total",
			Help: "Search analytics rows by stage (fetched from the provider, kept as keyword/page aggregates)",
		}, []string{"stage"}),
		cannibalized: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rankguard_last_audit_cannibalized_keywords",
			Help: "Cannibalized keywords found by the most recently completed audit",
		}),
	}

	reg.MustRegister(r.duration, r.rows, r.cannibalized)
	if store != nil {
		reg.MustRegister(&AuditRunCollector{store: store, log: log.With().Str("component", "metrics").Logger()})
	}
	if queueDepth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rankguard_audit_queue_depth",
			Help: "Audit runs waiting for a worker",
		}, queueDepth))
	}
	return r
}

// ObserveRows counts rows fetched from the provider and aggregates kept after filtering.
func (r *Recorder) ObserveRows(fetched, kept int) {
	r.rows.WithLabelValues("fetched").Add(float64(fetched))
	r.rows.WithLabelValues("kept").Add(float64(kept))
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(status models.AuditStatus, duration time.Duration, cannibalized int) {
	r.duration.WithLabelValues(string(status)).Observe(duration.Seconds())
	if status == models.AuditCompleted {
		r.cannibalized.Set(float64(cannibalized))
	}
}
