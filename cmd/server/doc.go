/*
Command server runs the sinkwatch HTTP service.

Configuration comes from the environment (see internal/infrastructure/config);
flags override the most common settings:

	server -port 8080 -catalogue hooks.yaml

Endpoints:

	GET  /              service info
	GET  /health        liveness and pool statistics
	GET  /sinks         installed hook catalogue
	POST /analyze       analyse HTML, a script or a URL
	GET  /metrics       Prometheus exposition
	GET  /metrics/json  metrics snapshot
*/
package main
