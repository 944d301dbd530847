/*
Package monitoring provides Prometheus metrics for the analysis service.

# Overview

Metrics are registered on a private registry rather than the global default,
so several collectors can coexist in one process and tests stay isolated.
The registry carries the Go runtime and process collectors plus:

- HTTP request metrics (count, latency, request and response size)
- Analyses by input kind and outcome, with a duration histogram
- Intercepted sink calls by sink identifier
- Uncaught script errors
- Page fetches by outcome

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Metrics satisfies analysis.Recorder
	analyzer, err := analysis.New(pool, opts, logger, metrics)
*/
package monitoring
