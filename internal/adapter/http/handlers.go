package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/relief"
)

const (
	maxFormBytes        = 1 << 20
	multipartMemory     = 8 << 20
	defaultRecentLimit  = 20
	maxRecentLimit      = 100
	mapZoom             = 5
	clockDisplayLayout  = "02/01/2006, 15:04:05"
	indiaStandardOffset = 5*60*60 + 30*60

	defaultRefreshTimeout = 30 * time.Second
)

var indiaTime = time.FixedZone("IST", indiaStandardOffset)

// mapView is the heat layer as the map draws it.
type mapView struct {
	domain.HeatSnapshot
	Selected domain.Source      `json:"selected"`
	Loading  bool               `json:"loading"`
	Center   domain.Geo         `json:"center"`
	Zoom     int                `json:"zoom"`
	Bounds   domain.BoundingBox `json:"bounds"`
}

type clockView struct {
	Time    time.Time `json:"time"`
	Display string    `json:"display"`
}

type dashboardView struct {
	Clock     clockView              `json:"clock"`
	Map       mapView                `json:"map"`
	Incidents domain.IncidentSummary `json:"incidents"`
}

func (s *Server) heatView(snap domain.HeatSnapshot, loading bool) mapView {
	if snap.Points == nil {
		snap.Points = []domain.HeatPoint{}
	}
	return mapView{
		HeatSnapshot: snap,
		Selected:     s.dash.Hazard.Selected(),
		Loading:      loading,
		Center:       domain.MapCenter,
		Zoom:         mapZoom,
		Bounds:       domain.IndiaBounds,
	}
}

func currentClock() clockView {
	now := domain.Now()
	return clockView{Time: now, Display: now.In(indiaTime).Format(clockDisplayLayout)}
}

func (s *Server) dashboard() dashboardView {
	snap, loading := s.dash.Hazard.Snapshot()
	return dashboardView{
		Clock:     currentClock(),
		Map:       s.heatView(snap, loading),
		Incidents: s.dash.Incidents.Summary(),
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard())
}

func (s *Server) handleClock(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, currentClock())
}

// handleHeatmap returns the current snapshot. A source parameter different
// from the current selection switches the selector and refetches.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("source")
	if raw != "" {
		src, err := domain.ParseSource(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if src != s.dash.Hazard.Selected() {
			ctx, cancel := s.refreshContext(r)
			defer cancel()
			snap := s.dash.Hazard.Select(ctx, src)
			writeJSON(w, http.StatusOK, s.heatView(snap, false))
			return
		}
	}
	snap, loading := s.dash.Hazard.Snapshot()
	writeJSON(w, http.StatusOK, s.heatView(snap, loading))
}

func (s *Server) handleHeatmapRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.refreshContext(r)
	defer cancel()
	snap := s.dash.Hazard.Refresh(ctx)
	writeJSON(w, http.StatusOK, s.heatView(snap, false))
}

// refreshContext detaches a shared snapshot refresh from the request, so a
// client that goes away does not cut the collect short for every viewer.
func (s *Server) refreshContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := s.dash.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	return context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err := errors.Join(errLat, errLng); err != nil {
		writeError(w, http.StatusBadRequest, "lat and lng must be numbers")
		return
	}
	writeJSON(w, http.StatusOK, domain.Inspect(lat, lng))
}

func (s *Server) handleIncidents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Incidents.Summary())
}

func (s *Server) handleVolunteer(w http.ResponseWriter, r *http.Request) {
	form := domain.NewVolunteerForm()
	if !decodeForm(w, r, &form) {
		return
	}
	ack, err := s.dash.Relief.RegisterVolunteer(r.Context(), form)
	s.writeSubmission(w, ack, err)
}

func (s *Server) handleDonation(w http.ResponseWriter, r *http.Request) {
	form := domain.NewDonationForm()
	if !decodeForm(w, r, &form) {
		return
	}
	ack, err := s.dash.Relief.SubmitDonation(r.Context(), form)
	s.writeSubmission(w, ack, err)
}

func (s *Server) handleHelpRequest(w http.ResponseWriter, r *http.Request) {
	form := domain.NewHelpRequestForm()
	if !decodeForm(w, r, &form) {
		return
	}
	ack, err := s.dash.Relief.SubmitHelpRequest(r.Context(), form)
	s.writeSubmission(w, ack, err)
}

// handleUpload accepts one multipart "file" part for the photo or video slot.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseUploadKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.dash.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	ack, err := s.dash.Relief.Upload(r.Context(), kind, hdr.Filename, hdr.Header.Get("Content-Type"), file, hdr.Size)
	s.writeSubmission(w, ack, err)
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	subs, err := s.dash.Relief.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing submissions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// decodeForm reads a JSON body over the form's initial state. It writes the
// error response itself and reports whether decoding succeeded.
func decodeForm(w http.ResponseWriter, r *http.Request, form any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := json.NewDecoder(r.Body).Decode(form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeSubmission(w http.ResponseWriter, ack domain.Ack, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, ack)
		return
	}

	var failure *relief.Failure
	switch {
	case errors.As(err, &failure) && failure.Invalid():
		writeError(w, http.StatusBadRequest, failure.Message)
	case errors.As(err, &failure):
		writeError(w, http.StatusBadGateway, failure.Message)
	default:
		s.logger.Error("submission handler failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}
