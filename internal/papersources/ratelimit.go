package papersources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// LimitConfig bounds the request rate and in-flight concurrency for one source.
type LimitConfig struct {
	// RequestsPerWindow is the sustained number of requests allowed per Window.
	RequestsPerWindow int

	// Window is the length of the rate window.
	Window time.Duration

	// MaxConcurrent is the maximum number of requests in flight at once.
	MaxConcurrent int
}

// withDefaults fills zero fields with a conservative one request per second.
func (c LimitConfig) withDefaults() LimitConfig {
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = 1
	}
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
	return c
}

// Limiter gates calls to one source's adapter. A caller must hold both a
// token from the continuously refilled bucket and a concurrency slot.
// It is safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
	slots   *semaphore.Weighted
	config  LimitConfig
}

// NewLimiter creates a limiter. Tokens refill continuously at
// RequestsPerWindow/Window per second; the bucket holds the smaller of
// MaxConcurrent and RequestsPerWindow tokens, so a full bucket never admits
// more than one window's worth of requests.
//
// Example configurations:
//   - PubMed without a key: LimitConfig{RequestsPerWindow: 3, Window: time.Second, MaxConcurrent: 3}
//   - bioRxiv: LimitConfig{RequestsPerWindow: 1, Window: time.Second, MaxConcurrent: 1}
func NewLimiter(cfg LimitConfig) *Limiter {
	cfg = cfg.withDefaults()
	perSecond := float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()
	burst := max(1, min(cfg.MaxConcurrent, cfg.RequestsPerWindow))
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		config:  cfg,
	}
}

// Acquire blocks until a concurrency slot and a rate token are available or
// ctx is done. The returned release func frees the slot; callers must call it
// exactly once, typically with defer. Extra calls are no-ops.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := l.limiter.Wait(ctx); err != nil {
		l.slots.Release(1)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.slots.Release(1) })
	}, nil
}

// Config returns the effective configuration.
func (l *Limiter) Config() LimitConfig {
	return l.config
}

// Tokens returns the current number of available tokens.
// This can be useful for monitoring and debugging.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// LimiterSet holds one limiter per source. Sources never share a limiter.
type LimiterSet struct {
	limiters map[domain.SourceID]*Limiter
}

// NewLimiterSet builds a limiter for every configured source.
func NewLimiterSet(configs map[domain.SourceID]LimitConfig) *LimiterSet {
	set := &LimiterSet{limiters: make(map[domain.SourceID]*Limiter, len(configs))}
	for id, cfg := range configs {
		set.limiters[id] = NewLimiter(cfg)
	}
	return set
}

// For returns the limiter of a source.
func (s *LimiterSet) For(id domain.SourceID) (*Limiter, error) {
	l, ok := s.limiters[id]
	if !ok {
		return nil, fmt.Errorf("no rate limiter configured for %s", id)
	}
	return l, nil
}
