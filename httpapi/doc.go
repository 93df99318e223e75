// Package httpapi exposes the execution engine over a JSON REST API.
//
// Routes:
//
//	POST /api/execute    run code and return the result envelope
//	GET  /api/health     liveness check
//	GET  /api/languages  configured languages and toolchain availability
//	GET  /metrics        Prometheus metrics (when metrics are enabled)
//
// Invalid and rejected requests are answered with 400, engine faults with 500,
// and every other terminal outcome (including failed and timed-out programs)
// with 200. The body is always the engine's result envelope.
//
// Usage:
//
//	srv := httpapi.New(cfg, logger, executor, registry, collector)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(ctx)
package httpapi
