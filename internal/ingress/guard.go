// Package ingress applies the two process-local protection policies at the
// webhook boundary: duplicate-delivery suppression and per-sender rate
// limiting. Neither policy persists across restarts; the upstream provider
// redelivers within seconds, and rate windows are a minute long.
package ingress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default policy parameters.
const (
	// DefaultDedupWindow is how long a message id is remembered.
	DefaultDedupWindow = 30 * time.Second
	// DefaultRateLimit is the maximum accepted messages per sender per epoch.
	DefaultRateLimit = 15
	// DefaultRateEpoch is the fixed rate-limit window. All counters reset in
	// bulk at this interval rather than sliding per sender; this trades
	// strict-window fairness for O(1) memory.
	DefaultRateEpoch = time.Minute
	// dedupSweepInterval is how often expired dedup entries are evicted.
	dedupSweepInterval = 10 * time.Second
)

// Guard owns the dedup set and the rate counters. Construct one per process
// and pass it into the webhook handler; it exposes no global state.
type Guard struct {
	window  time.Duration
	limit   int
	epoch   time.Duration

	mu     sync.Mutex
	seen   map[string]time.Time
	counts map[string]int

	now func() time.Time // test hook
}

// Opts holds configuration options for the Guard.
type Opts struct {
	DedupWindow time.Duration
	RateLimit   int
	RateEpoch   time.Duration
}

// Option defines a configuration option for the Guard.
type Option func(*Opts)

// WithDedupWindow overrides the duplicate-delivery window.
func WithDedupWindow(d time.Duration) Option {
	return func(o *Opts) { o.DedupWindow = d }
}

// WithRateLimit overrides the per-sender message ceiling.
func WithRateLimit(n int) Option {
	return func(o *Opts) { o.RateLimit = n }
}

// WithRateEpoch overrides the bulk-reset interval.
func WithRateEpoch(d time.Duration) Option {
	return func(o *Opts) { o.RateEpoch = d }
}

// NewGuard creates a Guard with the given options.
func NewGuard(opts ...Option) *Guard {
	cfg := Opts{
		DedupWindow: DefaultDedupWindow,
		RateLimit:   DefaultRateLimit,
		RateEpoch:   DefaultRateEpoch,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Guard created", "dedup_window", cfg.DedupWindow, "rate_limit", cfg.RateLimit, "rate_epoch", cfg.RateEpoch)
	return &Guard{
		window: cfg.DedupWindow,
		limit:  cfg.RateLimit,
		epoch:  cfg.RateEpoch,
		seen:   make(map[string]time.Time),
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// Start launches the background eviction loops. They run for the process
// lifetime and stop when ctx is cancelled.
func (g *Guard) Start(ctx context.Context) {
	go g.evictLoop(ctx)
	go g.resetLoop(ctx)
	slog.Debug("Guard background loops started")
}

// IsDuplicate reports whether messageID was already seen within the dedup
// window, recording it on first sight. Messages without an id cannot be
// deduplicated and are let through.
func (g *Guard) IsDuplicate(messageID string) bool {
	if messageID == "" {
		return false
	}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if at, ok := g.seen[messageID]; ok && now.Sub(at) < g.window {
		return true
	}
	g.seen[messageID] = now
	return false
}

// Allow counts one message from sender and reports whether it is within the
// current epoch's ceiling. Rejected messages are not counted again.
func (g *Guard) Allow(sender string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counts[sender] >= g.limit {
		slog.Info("Guard rate limit exceeded", "sender", sender, "count", g.counts[sender])
		return false
	}
	g.counts[sender]++
	return true
}

func (g *Guard) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(dedupSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.evictExpired()
		}
	}
}

func (g *Guard) evictExpired() {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, id)
		}
	}
}

func (g *Guard) resetLoop(ctx context.Context) {
	ticker := time.NewTicker(g.epoch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.ResetCounters()
		}
	}
}

// ResetCounters clears all rate counters, starting a new epoch.
func (g *Guard) ResetCounters() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.counts) > 0 {
		slog.Debug("Guard rate counters reset", "senders", len(g.counts))
	}
	g.counts = make(map[string]int)
}
