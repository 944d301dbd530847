// Package http provides the HTTP handlers of the analysis API.
//
// Endpoints:
//   - GET /, GET /health: banner and pool health
//   - GET /sinks: the installed hook catalogue
//   - POST /analyze: run inline HTML, a script, or a fetched URL
//   - GET /metrics/json: metric snapshot, pool usage, per-host breaker state
//
// Prometheus exposition at GET /metrics is mounted by the server from the
// monitoring registry.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Analyzer: a, Pool: pool, Fetcher: fetcher})
//	router.POST("/analyze", handlers.Analyze)
package http
