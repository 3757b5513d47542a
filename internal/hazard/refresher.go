package hazard

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

// Refresh triggers, used as metric labels.
const (
	TriggerStartup = "startup"
	TriggerTick    = "tick"
	TriggerManual  = "manual"
	TriggerSelect  = "select"

	// TriggerAbandoned counts refreshes whose context ended mid-collect.
	TriggerAbandoned = "abandoned"
)

// SnapshotPublisher receives every completed snapshot.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap domain.HeatSnapshot) error
}

// Invalidator drops cached feed bodies before a manual refresh.
type Invalidator interface {
	Invalidate()
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Refresher) { r.clock = c }
}

// WithPublisher publishes each snapshot after it is stored.
func WithPublisher(p SnapshotPublisher) Option {
	return func(r *Refresher) { r.publisher = p }
}

// WithInvalidator lets manual refreshes bypass a feed cache.
func WithInvalidator(i Invalidator) Option {
	return func(r *Refresher) { r.invalidator = i }
}

// Refresher owns the current heat snapshot and the selected source.
type Refresher struct {
	agg         *Aggregator
	interval    time.Duration
	clock       clockwork.Clock
	publisher   SnapshotPublisher
	invalidator Invalidator
	logger      *slog.Logger
	metrics     *observability.Metrics

	refreshMu sync.Mutex // one collect at a time
	mu        sync.RWMutex
	selected  domain.Source
	snapshot  domain.HeatSnapshot
	loading   bool
	ready     atomic.Bool
}

// NewRefresher creates a Refresher that starts on the given selector.
func NewRefresher(agg *Aggregator, selected domain.Source, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Refresher {
	r := &Refresher{
		agg:      agg,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
		selected: selected,
		snapshot: domain.HeatSnapshot{
			Source: selected,
			Points: []domain.HeatPoint{},
			Status: map[string]string{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckReadiness returns nil once the first refresh has completed.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("hazard snapshot has not been collected yet")
	}
	return nil
}

// Run refreshes immediately and then on every interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("hazard refresher started", "interval", r.interval, "source", r.Selected())
	r.metrics.HazardRefresherRunning.Set(1)
	defer r.metrics.HazardRefresherRunning.Set(0)

	r.refresh(ctx, TriggerStartup)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("hazard refresher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			r.refresh(ctx, TriggerTick)
		}
	}
}

// Refresh collects the selected sources now, bypassing any feed cache.
func (r *Refresher) Refresh(ctx context.Context) domain.HeatSnapshot {
	if r.invalidator != nil {
		r.invalidator.Invalidate()
	}
	return r.refresh(ctx, TriggerManual)
}

// Select switches the selector and refreshes.
func (r *Refresher) Select(ctx context.Context, src domain.Source) domain.HeatSnapshot {
	r.mu.Lock()
	r.selected = src
	r.mu.Unlock()
	return r.refresh(ctx, TriggerSelect)
}

// Selected returns the current selector.
func (r *Refresher) Selected() domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Snapshot returns a copy of the current snapshot. While a refresh is in
// flight the previous points stay visible and the selected sources report
// domain.StatusLoading.
func (r *Refresher) Snapshot() (domain.HeatSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.snapshot
	snap.Points = slices.Clone(r.snapshot.Points)
	snap.Status = maps.Clone(r.snapshot.Status)
	return snap, r.loading
}

// refresh collects the selector and stores the result. A collect cut short
// by ctx is discarded: the previous snapshot and statuses stay in place and
// nothing is published.
func (r *Refresher) refresh(ctx context.Context, trigger string) domain.HeatSnapshot {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	selector, prevStatus := r.markLoading()
	start := time.Now()

	snap := r.agg.Collect(ctx, selector)

	if err := ctx.Err(); err != nil {
		r.mu.Lock()
		r.snapshot.Status = prevStatus
		r.loading = false
		kept := r.snapshot
		r.mu.Unlock()

		r.metrics.HazardRefreshes.WithLabelValues(TriggerAbandoned).Inc()
		r.logger.Warn("hazard refresh abandoned, keeping previous snapshot",
			"trigger", trigger,
			"source", selector,
			"error", err,
		)
		return kept
	}

	r.mu.Lock()
	r.snapshot = snap
	r.loading = false
	r.mu.Unlock()
	r.ready.Store(true)

	r.metrics.HazardRefreshes.WithLabelValues(trigger).Inc()
	r.metrics.HazardRefreshDuration.Observe(time.Since(start).Seconds())
	r.logger.Debug("hazard snapshot refreshed",
		"trigger", trigger,
		"source", selector,
		"points", len(snap.Points),
	)

	if r.publisher != nil {
		if err := r.publisher.PublishSnapshot(ctx, snap); err != nil {
			r.logger.Warn("publish hazard snapshot failed", "error", err)
		}
	}
	return snap
}

// markLoading flags the selected sources as loading and returns the selector
// with the statuses it replaced.
func (r *Refresher) markLoading() (domain.Source, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.snapshot.Status
	status := make(map[string]string, len(domain.Sources))
	for _, src := range r.selected.Expand() {
		status[src.Key()] = domain.StatusLoading
	}
	r.snapshot.Status = status
	r.loading = true
	return r.selected, prev
}
