package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/isdmx/coderun/config"
)

// Collector records engine metrics
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	rejections        *prometheus.CounterVec
	activeWorkspaces  prometheus.Gauge
}

// NewCollector creates a collector registered on registry. If registry is
// nil a fresh one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "coderun"
	}

	// Execution latencies range from a few ms (rejections) to the 25s run cap.
	buckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30}

	c := &Collector{
		enabled:  cfg.Enabled,
		registry: registry,
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of execution requests by language and terminal status.",
		}, []string{"language", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "End-to-end execution time from acceptance to result.",
			Buckets:   buckets,
		}, []string{"language", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of individual compile and run stages.",
			Buckets:   buckets,
		}, []string{"language", "stage"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_rejections_total",
			Help:      "Submissions rejected by the risk filter.",
		}, []string{"language"}),
		activeWorkspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspaces_active",
			Help:      "Workspaces currently allocated.",
		}),
	}

	registry.MustRegister(
		c.executions,
		c.executionDuration,
		c.stageDuration,
		c.rejections,
		c.activeWorkspaces,
	)

	return c
}

// NewFromConfig creates a collector from the application configuration
func NewFromConfig(cfg *config.Config) *Collector {
	return NewCollector(&cfg.Metrics, nil)
}

// RecordExecution records one terminal execution result
func (c *Collector) RecordExecution(language, status string, elapsed time.Duration) {
	if !c.enabled {
		return
	}
	c.executions.WithLabelValues(language, status).Inc()
	c.executionDuration.WithLabelValues(language, status).Observe(elapsed.Seconds())
}

// RecordStage records the wall time of a compile or run stage
func (c *Collector) RecordStage(language, stage string, elapsed time.Duration) {
	if !c.enabled {
		return
	}
	c.stageDuration.WithLabelValues(language, stage).Observe(elapsed.Seconds())
}

// RecordRejection counts a risk filter rejection. The matched pattern is
// deliberately not a label to keep cardinality bounded by configuration.
func (c *Collector) RecordRejection(language string) {
	if !c.enabled {
		return
	}
	c.rejections.WithLabelValues(language).Inc()
}

// SetActiveWorkspaces updates the workspace gauge
func (c *Collector) SetActiveWorkspaces(n int64) {
	if !c.enabled {
		return
	}
	c.activeWorkspaces.Set(float64(n))
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
