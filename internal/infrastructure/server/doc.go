/*
Package server assembles the sinkwatch HTTP service.

NewServer builds the sandbox pool, the analyzer and the optional page fetcher
from a config.Config, then mounts the api handlers behind the middleware
chain:

	recovery → request id → access log → metrics → CORS → rate limit → body limit

Prometheus exposition is served on /metrics. Shutdown drains in-flight
requests before closing the pool.

NewAnalyzer is exported for the analyze command, which shares the same
configuration without the HTTP layer.
*/
package server
