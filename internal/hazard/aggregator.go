// Package hazard keeps the heat layer: it collects the selected hazard feeds,
// normalizes them into heat points and refreshes the snapshot periodically.
package hazard

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

// Feed returns the raw body for one hazard source.
type Feed interface {
	Fetch(ctx context.Context, src domain.Source) ([]byte, error)
}

// Aggregator fetches and normalizes one or more sources into a snapshot.
type Aggregator struct {
	feed    Feed
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAggregator creates an Aggregator reading from feed.
func NewAggregator(feed Feed, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{feed: feed, logger: logger, metrics: metrics}
}

type sourceResult struct {
	points []domain.HeatPoint
	status string
}

// Collect fetches every source the selector covers concurrently and merges
// the results in source order. A failing source contributes no points and its
// failure status; Collect itself never fails.
func (a *Aggregator) Collect(ctx context.Context, selector domain.Source) domain.HeatSnapshot {
	sources := selector.Expand()
	results := make([]sourceResult, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i] = a.collectOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	snap := domain.HeatSnapshot{
		Source:     selector,
		Points:     make([]domain.HeatPoint, 0),
		Status:     make(map[string]string, len(sources)),
		LastUpdate: domain.Now(),
	}
	for i, src := range sources {
		snap.Points = append(snap.Points, results[i].points...)
		snap.Status[src.Key()] = results[i].status
		a.metrics.HazardPoints.WithLabelValues(src.Key()).Set(float64(len(results[i].points)))
	}
	return snap
}

func (a *Aggregator) collectOne(ctx context.Context, src domain.Source) sourceResult {
	body, err := a.feed.Fetch(ctx, src)
	if err == nil {
		var points []domain.HeatPoint
		points, err = domain.ParseFeed(src, body)
		if err == nil {
			return sourceResult{points: points, status: src.CountStatus(len(points))}
		}
	}

	a.logger.Warn("hazard source unavailable", "source", src, "error", err)
	a.metrics.HazardSourceErrors.WithLabelValues(src.Key()).Inc()
	return sourceResult{points: []domain.HeatPoint{}, status: src.FailureStatus()}
}
