// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log shippers
//   - Development: colored console output
//
// Loggers are named per component ("server", "analyze"); sub-components use
// Named on the embedded *zap.Logger:
//
//	logger := logging.New(logging.Config{Level: "info", Name: "server"})
//	defer logger.Sync()
//	pool, err := sandbox.NewPool(cfg, 4, ttl, logger.Named("sandbox"))
package logging
