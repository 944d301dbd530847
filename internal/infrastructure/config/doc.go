// Package config provides 12-factor configuration management for sinkwatch.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, body limit, analysis deadline)
//   - Sandbox: runtime pool size and per-script limits
//   - Instrument: catalogue file, result global and argument rendering
//   - Fetch: page fetcher timeout, retries and request rate
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, MAX_BODY_SIZE, ANALYSIS_DEADLINE
//   - SANDBOX_TIMEOUT, SANDBOX_POOL_SIZE, SANDBOX_TIMER_BUDGET, SANDBOX_INTERVAL_RUNS
//   - CATALOGUE_PATH, RESULT_GLOBAL, RENDER_MAX_LENGTH, RENDER_MEMBER_FALLBACK
//   - FETCH_ENABLED, FETCH_TIMEOUT, FETCH_RETRIES, FETCH_RPS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
