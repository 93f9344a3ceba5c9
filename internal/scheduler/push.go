package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobMetrics holds per-job gauges for one-shot runs. They live in their own
// registry so a push only carries batch state.
type JobMetrics struct {
	registry    *prometheus.Registry
	processed   *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
	lastFailure *prometheus.GaugeVec
}

func NewJobMetrics() *JobMetrics {
	m := &JobMetrics{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "floorquote_job_processed_items",
			Help: "Items handled by the last run of a scheduler job.",
		}, []string{"job"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "floorquote_job_duration_seconds",
			Help: "Duration of the last run of a scheduler job.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "floorquote_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of a scheduler job.",
		}, []string{"job"}),
		lastFailure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "floorquote_job_last_failure_timestamp_seconds",
			Help: "Unix time of the last failed run of a scheduler job.",
		}, []string{"job"}),
	}
	m.registry.MustRegister(m.processed, m.duration, m.lastSuccess, m.lastFailure)
	return m
}

func (m *JobMetrics) observe(job string, processed int, took time.Duration, failed bool, now time.Time) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(job).Set(float64(processed))
	m.duration.WithLabelValues(job).Set(took.Seconds())
	if failed {
		m.lastFailure.WithLabelValues(job).Set(float64(now.Unix()))
		return
	}
	m.lastSuccess.WithLabelValues(job).Set(float64(now.Unix()))
}

func (m *JobMetrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.registry
}

// PushgatewayPusher sends job metrics to a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: strings.TrimSpace(endpoint),
		job:      strings.TrimSpace(job),
		grouping: grouping,
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p == nil || gatherer == nil {
		return nil
	}
	if p.endpoint == "" {
		return errors.New("pushgateway endpoint is required")
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(gatherer)
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}
