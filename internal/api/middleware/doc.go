// Package middleware provides the HTTP middleware of the analysis API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//   - RequestID: X-Request-ID tagging
//   - Logger: zap access log
//   - BodyLimit: request body cap
package middleware
