package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records metadata for scheduled jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful cron job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed cron job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &CronJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// QueueMetrics tracks notification queue processing outcomes per job kind.
type QueueMetrics struct {
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	batched   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	depth     prometheus.Gauge
}

// NewQueueMetrics registers the queue metrics on the provided registerer.
func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	if reg == nil {
		return &QueueMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_processed_total",
		Help: "Notification jobs completed, by kind.",
	}, []string{"kind"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_failed_total",
		Help: "Notification job attempts that failed, by kind.",
	}, []string{"kind"})
	batched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_batched_total",
		Help: "Notification jobs completed by being folded into a batch representative.",
	}, []string{"kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_job_duration_seconds",
		Help:    "Duration of notification job processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "queue_due_jobs",
		Help: "Due pending jobs observed at the start of a poll tick.",
	})
	reg.MustRegister(processed, failed, batched, duration, depth)
	return &QueueMetrics{
		processed: processed,
		failed:    failed,
		batched:   batched,
		duration:  duration,
		depth:     depth,
	}
}

// IncProcessed increments the processed counter for the kind.
func (q *QueueMetrics) IncProcessed(kind string) {
	if q == nil || q.processed == nil {
		return
	}
	q.processed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailed increments the failed counter for the kind.
func (q *QueueMetrics) IncFailed(kind string) {
	if q == nil || q.failed == nil {
		return
	}
	q.failed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncBatched increments the batched counter for the kind.
func (q *QueueMetrics) IncBatched(kind string) {
	if q == nil || q.batched == nil {
		return
	}
	q.batched.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveDuration records processing duration for the kind.
func (q *QueueMetrics) ObserveDuration(kind string, duration time.Duration) {
	if q == nil || q.duration == nil {
		return
	}
	q.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// SetDepth records the due-job depth seen by a poll tick.
func (q *QueueMetrics) SetDepth(n int) {
	if q == nil || q.depth == nil {
		return
	}
	q.depth.Set(float64(n))
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
