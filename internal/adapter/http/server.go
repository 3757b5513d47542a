package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AllReady is ready once every checker is.
type AllReady []ReadinessChecker

func (a AllReady) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HazardMap is the heat layer behind the map view.
type HazardMap interface {
	Snapshot() (domain.HeatSnapshot, bool)
	Selected() domain.Source
	Select(ctx context.Context, src domain.Source) domain.HeatSnapshot
	Refresh(ctx context.Context) domain.HeatSnapshot
}

// IncidentPanel is the critical incidents panel.
type IncidentPanel interface {
	Summary() domain.IncidentSummary
}

// Relief forwards form submissions.
type Relief interface {
	RegisterVolunteer(ctx context.Context, form domain.VolunteerForm) (domain.Ack, error)
	SubmitDonation(ctx context.Context, form domain.DonationForm) (domain.Ack, error)
	SubmitHelpRequest(ctx context.Context, form domain.HelpRequestForm) (domain.Ack, error)
	Upload(ctx context.Context, kind domain.UploadKind, fileName, fileType string, body io.Reader, size int64) (domain.Ack, error)
	Recent(ctx context.Context, limit int) ([]domain.Submission, error)
}

// Dashboard groups the components the API and page read from.
type Dashboard struct {
	Hazard         HazardMap
	Incidents      IncidentPanel
	Relief         Relief
	MaxUploadBytes int64
	// RefreshTimeout bounds a heat layer refresh started by a request.
	RefreshTimeout time.Duration
}

// Server exposes the dashboard page, its JSON API, and the health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	dash       Dashboard
	logger     *slog.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(addr string, ready ReadinessChecker, dash Dashboard, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dash:   dash,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/clock", s.handleClock)
	mux.HandleFunc("GET /api/heatmap", s.handleHeatmap)
	mux.HandleFunc("POST /api/heatmap/refresh", s.handleHeatmapRefresh)
	mux.HandleFunc("GET /api/inspect", s.handleInspect)
	mux.HandleFunc("GET /api/incidents", s.handleIncidents)
	mux.HandleFunc("POST /api/volunteer", s.handleVolunteer)
	mux.HandleFunc("POST /api/donation", s.handleDonation)
	mux.HandleFunc("POST /api/help-request", s.handleHelpRequest)
	mux.HandleFunc("POST /api/uploads", s.handleUpload)
	mux.HandleFunc("GET /api/submissions", s.handleSubmissions)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
