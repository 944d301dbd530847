package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// Pool manages a pool of reusable runtimes
type Pool struct {
	config     Config
	logger     *zap.Logger
	runtimes   chan *Runtime
	size       int
	acquireTTL time.Duration
	mu         sync.RWMutex
	closed     bool
}

// Stats is a point-in-time view of pool usage
type Stats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	InUse     int  `json:"in_use"`
	Closed    bool `json:"closed"`
}

// NewPool creates a runtime pool. acquireTTL bounds how long Acquire waits
// for a free runtime; zero means five seconds.
func NewPool(config Config, size int, acquireTTL time.Duration, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if acquireTTL <= 0 {
		acquireTTL = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := &Pool{
		config:     config,
		logger:     logger,
		runtimes:   make(chan *Runtime, size),
		size:       size,
		acquireTTL: acquireTTL,
	}

	// Pre-create runtimes
	for i := 0; i < size; i++ {
		rt, err := New(config, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.runtimes <- rt
	}

	return pool, nil
}

// Acquire gets a runtime from the pool
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.acquireTTL)
	defer timer.Stop()

	select {
	case rt := <-p.runtimes:
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release resets rt and returns it to the pool
func (p *Pool) Release(rt *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return rt.Close()
	}

	if err := rt.Reset(); err != nil {
		p.logger.Warn("Failed to reset runtime, replacing", zap.Error(err))
		rt.Close()
		if fresh, newErr := New(p.config, p.logger); newErr == nil {
			p.runtimes <- fresh
		}
		return err
	}

	select {
	case p.runtimes <- rt:
		return nil
	default:
		// Pool full, close runtime
		return rt.Close()
	}
}

// With runs fn on a pooled runtime and releases it afterwards
func (p *Pool) With(ctx context.Context, fn func(*Runtime) error) error {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(rt)

	return fn(rt)
}

// Close closes pool and all runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.runtimes)

	for rt := range p.runtimes {
		rt.Close()
	}

	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.runtimes)
	return Stats{
		Size:      p.size,
		Available: available,
		InUse:     p.size - available,
		Closed:    p.closed,
	}
}
