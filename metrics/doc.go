// Package metrics exposes Prometheus metrics for the execution engine.
//
// The Collector owns its own registry so tests and embedded uses never
// collide with the global default registry. All recording methods are
// no-ops when metrics are disabled.
//
// Usage:
//
//	collector := metrics.NewCollector(&cfg.Metrics, nil)
//	collector.RecordExecution("python", "succeeded", 120*time.Millisecond)
//	http.Handle("/metrics", collector.Handler())
package metrics
