package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sahayata-dashboard/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/sahayata-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sahayata-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/sahayata-dashboard/internal/adapter/mapbox"
	"github.com/couchcryptid/sahayata-dashboard/internal/adapter/sqlite"
	"github.com/couchcryptid/sahayata-dashboard/internal/config"
	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/hazard"
	"github.com/couchcryptid/sahayata-dashboard/internal/incident"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
	"github.com/couchcryptid/sahayata-dashboard/internal/relief"
)

// app holds the wired service components.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	client    *backend.Client
	feed      *backend.CachedFeed
	refresher *hazard.Refresher
	panel     *incident.Panel
	relief    *relief.Service

	journal *sqlite.Journal
	writer  *kafkaadapter.Writer
}

// newFeed builds the backend client and the cached hazard feed on top of it.
func newFeed(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*backend.Client, *backend.CachedFeed) {
	client := backend.NewClient(cfg, metrics, logger)
	return client, backend.NewCachedFeed(client, cfg.FeedCacheTTL, metrics)
}

func newGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.Geocoder {
	if !cfg.MapboxEnabled {
		logger.Info("mapbox geocoding disabled")
		metrics.GeocodeEnabled.Set(0)
		return nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	metrics.GeocodeEnabled.Set(1)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}

// newApp wires every component the service runs.
func newApp(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics}
	a.client, a.feed = newFeed(cfg, logger, metrics)

	var reliefOpts []relief.Option
	hazardOpts := []hazard.Option{hazard.WithInvalidator(a.feed)}

	if geocoder := newGeocoder(cfg, logger, metrics); geocoder != nil {
		reliefOpts = append(reliefOpts, relief.WithGeocoder(geocoder))
	}

	if cfg.JournalPath != "" {
		j, err := sqlite.Open(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open submission journal: %w", err)
		}
		a.journal = j
		reliefOpts = append(reliefOpts, relief.WithJournal(j))
		logger.Info("submission journal enabled", "path", cfg.JournalPath)
	}

	if cfg.KafkaEnabled {
		a.writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		reliefOpts = append(reliefOpts, relief.WithPublisher(a.writer))
		hazardOpts = append(hazardOpts, hazard.WithPublisher(a.writer))
		logger.Info("event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	agg := hazard.NewAggregator(a.feed, logger, metrics)
	a.refresher = hazard.NewRefresher(agg, cfg.DefaultSource, cfg.HazardRefreshInterval, logger, metrics, hazardOpts...)
	a.panel = incident.NewPanel(a.client, cfg.IncidentRefreshInterval, logger, metrics)
	a.relief = relief.NewService(a.client, logger, metrics, reliefOpts...)
	return a, nil
}

func (a *app) readiness() httpadapter.ReadinessChecker {
	checks := httpadapter.AllReady{a.refresher, a.panel}
	if a.journal != nil {
		checks = append(checks, a.journal)
	}
	return checks
}

func (a *app) dashboard() httpadapter.Dashboard {
	return httpadapter.Dashboard{
		Hazard:         a.refresher,
		Incidents:      a.panel,
		Relief:         a.relief,
		MaxUploadBytes: a.cfg.MaxUploadBytes,
		RefreshTimeout: refreshTimeout(a.cfg),
	}
}

// refreshTimeout leaves room for the rate limiter wait on top of one backend
// round trip per source.
func refreshTimeout(cfg *config.Config) time.Duration {
	return 2 * cfg.BackendTimeout
}

// Close releases the journal and the event writer.
func (a *app) Close() {
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Error("journal close error", "error", err)
		}
	}
}
