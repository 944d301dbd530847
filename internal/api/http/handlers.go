package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sinkwatch/internal/analysis"
	"github.com/GriffinCanCode/sinkwatch/internal/api/middleware"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
	"github.com/GriffinCanCode/sinkwatch/internal/sandbox"
)

// Version is reported by the health endpoints
const Version = "0.3.0"

// Fetcher loads remote pages for URL analyses
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*page.Document, error)
}

// Deps are the collaborators of Handlers. Fetcher may be nil to disable URL
// analyses.
type Deps struct {
	Analyzer *analysis.Analyzer
	Pool     *sandbox.Pool
	Fetcher  Fetcher
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
	// Deadline bounds one analysis including any fetch. Zero means none.
	Deadline time.Duration
}

// Handlers contains all HTTP handlers
type Handlers struct {
	analyzer *analysis.Analyzer
	pool     *sandbox.Pool
	fetcher  Fetcher
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	deadline time.Duration
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		analyzer: deps.Analyzer,
		pool:     deps.Pool,
		fetcher:  deps.Fetcher,
		metrics:  deps.Metrics,
		logger:   logger,
		deadline: deps.Deadline,
	}
}

// Register mounts every handler on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/sinks", h.Sinks)
	r.POST("/analyze", h.Analyze)
	r.GET("/metrics/json", h.MetricsJSON)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "sinkwatch",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	stats := h.pool.Stats()
	status, code := "healthy", http.StatusOK
	if stats.Closed {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"version": Version,
		"pool":    stats,
		"fetch":   gin.H{"enabled": h.fetcher != nil},
	})
}

// Sinks lists the installed catalogue
func (h *Handlers) Sinks(c *gin.Context) {
	cat := h.analyzer.Catalogue()
	c.JSON(http.StatusOK, gin.H{
		"sinks": cat.Sinks(),
		"hooks": cat.Hooks,
	})
}

// Analyze runs one analysis. The report is JSON unless ?format=yaml.
func (h *Handlers) Analyze(c *gin.Context) {
	format, err := analysis.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, err)
			return
		}
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	if h.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deadline)
		defer cancel()
	}

	report, err := h.run(ctx, &req)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}

	data, err := report.Marshal(format)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	contentType := "application/json; charset=utf-8"
	if format == analysis.FormatYAML {
		contentType = "application/yaml; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handlers) run(ctx context.Context, req *AnalyzeRequest) (*analysis.Report, error) {
	switch {
	case strings.TrimSpace(req.URL) != "":
		if h.fetcher == nil {
			return nil, errFetchDisabled
		}
		doc, err := h.fetcher.Fetch(ctx, strings.TrimSpace(req.URL))
		if h.metrics != nil {
			h.metrics.RecordFetch(fetchStatus(err))
		}
		if err != nil {
			return nil, &fetchError{err: err}
		}
		return h.analyzer.AnalyzeDocument(ctx, doc)
	case strings.TrimSpace(req.HTML) != "":
		name := req.Name
		if name == "" {
			name = "submitted.html"
		}
		return h.analyzer.Analyze(ctx, analysis.Input{Name: name, Kind: page.KindHTML, Data: []byte(req.HTML)})
	default:
		return h.analyzer.AnalyzeScript(ctx, req.Name, req.Script)
	}
}

// MetricsJSON reports metric values, pool usage and per-host breaker state
func (h *Handlers) MetricsJSON(c *gin.Context) {
	body := gin.H{
		"timestamp": time.Now(),
		"pool":      h.pool.Stats(),
	}
	if h.metrics != nil {
		body["summary"] = h.metrics.Snapshot()
	}
	if hs, ok := h.fetcher.(interface {
		HostStates() map[string]resilience.State
	}); ok {
		hosts := make(map[string]string)
		for host, state := range hs.HostStates() {
			hosts[host] = state.String()
		}
		body["hosts"] = hosts
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) fail(c *gin.Context, code int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:     err.Error(),
		RequestID: middleware.GetRequestID(c),
	})
}
