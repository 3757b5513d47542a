// Package incident maintains the critical incidents panel.
package incident

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

// Source returns the raw incident payload.
type Source interface {
	FetchDisasterData(ctx context.Context, hint string) ([]byte, error)
}

// Panel polls the incident source and keeps the merged list.
type Panel struct {
	source   Source
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu         sync.RWMutex
	incidents  []domain.Incident
	lastUpdate time.Time
	loaded     atomic.Bool
}

// NewPanel creates a Panel that polls source every interval. Until the first
// refresh the panel shows the placeholders and reports loading.
func NewPanel(source Source, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Panel {
	return &Panel{
		source:    source,
		interval:  interval,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		metrics:   metrics,
		incidents: domain.PlaceholderIncidents(),
	}
}

// SetClock replaces the ticker clock, for tests.
func (p *Panel) SetClock(c clockwork.Clock) {
	p.clock = c
}

// CheckReadiness returns nil once the first refresh has completed.
func (p *Panel) CheckReadiness(_ context.Context) error {
	if !p.loaded.Load() {
		return errors.New("incident panel has not loaded yet")
	}
	return nil
}

// Run refreshes immediately and then on every interval until ctx is cancelled.
func (p *Panel) Run(ctx context.Context) error {
	p.logger.Info("incident panel started", "interval", p.interval)
	p.Refresh(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("incident panel stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.Refresh(ctx)
		}
	}
}

// Refresh fetches the incident payload and replaces the list with the
// placeholders followed by whatever the payload carried. A failed fetch or an
// unrecognized payload leaves the placeholders alone.
func (p *Panel) Refresh(ctx context.Context) domain.IncidentSummary {
	remote, outcome := p.fetch(ctx)
	merged := domain.MergeIncidents(remote)

	p.mu.Lock()
	p.incidents = merged
	p.lastUpdate = domain.Now()
	p.mu.Unlock()
	p.loaded.Store(true)

	p.metrics.IncidentRefreshes.WithLabelValues(outcome).Inc()
	p.metrics.IncidentsCurrent.Set(float64(len(merged)))
	return p.Summary()
}

func (p *Panel) fetch(ctx context.Context) ([]domain.Incident, string) {
	body, err := p.source.FetchDisasterData(ctx, "")
	if err != nil {
		p.logger.Warn("incident fetch failed, showing placeholders", "error", err)
		return nil, "fallback"
	}
	remote, ok := domain.DecodeIncidents(body)
	if !ok {
		p.logger.Debug("incident payload not recognized, showing placeholders", "bytes", len(body))
		return nil, "fallback"
	}
	return remote, "remote"
}

// Summary returns the panel's current aggregate view.
func (p *Panel) Summary() domain.IncidentSummary {
	p.mu.RLock()
	incidents := slices.Clone(p.incidents)
	lastUpdate := p.lastUpdate
	p.mu.RUnlock()

	sum := domain.SummarizeIncidents(incidents)
	sum.Loading = !p.loaded.Load()
	sum.LastUpdate = lastUpdate
	return sum
}
