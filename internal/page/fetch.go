package page

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/resilience"
)

var (
	ErrUnsupportedScheme = errors.New("only http and https pages can be fetched")
	ErrStatus            = errors.New("unexpected response status")
)

// FetchConfig tunes the fetcher.
type FetchConfig struct {
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64 // zero means unlimited
	UserAgent         string
}

// DefaultFetchConfig returns the default fetch configuration
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:           30 * time.Second,
		Retries:           3,
		RequestsPerSecond: 5,
		UserAgent:         "sinkwatch/1.0",
	}
}

// Fetcher downloads pages over a retrying transport, rate limited globally
// and guarded by one circuit breaker per host.
type Fetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	hosts   *resilience.Group
	logger  *zap.Logger
}

// NewFetcher creates a fetcher
func NewFetcher(cfg FetchConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetTransport(retryClient.StandardClient().Transport).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,*/*;q=0.8").
		SetResponseBodyLimit(MaxSize)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	hosts := resilience.NewGroup(resilience.Settings{
		Cooldown: 30 * time.Second,
		Trip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(host string, from, to resilience.State) {
			logger.Warn("Host breaker changed state",
				zap.String("host", host),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Fetcher{client: client, limiter: limiter, hosts: hosts, logger: logger}
}

// Fetch downloads and parses the page at rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := resilience.Call(f.hosts.Get(u.Host), func() (*resty.Response, error) {
		resp, err := f.client.R().SetContext(ctx).Get(u.String())
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("%w: %s returned %d", ErrStatus, rawURL, resp.StatusCode())
		}
		return resp, nil
	})
	if err != nil {
		f.logger.Debug("Fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}

	f.logger.Debug("Fetched page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode()),
		zap.Int("bytes", len(resp.Body())),
	)
	return Parse(resp.Body(), rawURL, resp.Header().Get("Content-Type"))
}

// HostStates reports the breaker state of every host fetched so far
func (f *Fetcher) HostStates() map[string]resilience.State {
	return f.hosts.States()
}
