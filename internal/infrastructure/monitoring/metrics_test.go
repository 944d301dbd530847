package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAnalysis(t *testing.T) {
	m := NewMetrics()

	m.RecordAnalysis("html", "success", 10*time.Millisecond)
	m.RecordAnalysis("html", "error", time.Millisecond)
	m.RecordObservation("eval")
	m.RecordObservation("eval")
	m.RecordObservation("document_write")
	m.RecordScriptErrors(3)
	m.RecordScriptErrors(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("html", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Observations.WithLabelValues("eval")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ScriptErrors))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Analyses)
	assert.Equal(t, int64(1), snap.FailedAnalyses)
	assert.Equal(t, map[string]int64{"eval": 2, "document_write": 1}, snap.ObservationsBySink)
}

func TestSeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordObservation("eval")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Observations.WithLabelValues("eval")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Observations.WithLabelValues("eval")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sinkwatch_http_requests_total{method="GET",path="/items/:id",status="200"} 2`)
	assert.Contains(t, w.Body.String(), "sinkwatch_uptime_seconds")
}
