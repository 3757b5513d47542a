package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"barWidth": barWidth,
}).ParseFS(templateFS, "templates/dashboard.html"))

type pageData struct {
	Clock      clockView
	Map        mapView
	Incidents  domain.IncidentSummary
	Sources    []domain.Source
	Skills     []string
	Amounts    []float64
	MaxBarSize int
}

// barWidth scales a severity count to a percentage of the widest bar.
func barWidth(value, maxValue int) int {
	if maxValue <= 0 {
		return 0
	}
	return value * 100 / maxValue
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	view := s.dashboard()
	data := pageData{
		Clock:     view.Clock,
		Map:       view.Map,
		Incidents: view.Incidents,
		Sources:   append([]domain.Source{domain.SourceAll}, domain.Sources...),
		Skills:    domain.VolunteerSkills,
		Amounts:   domain.DonationAmounts,
	}
	for _, stat := range view.Incidents.Severity {
		data.MaxBarSize = max(data.MaxBarSize, stat.Value)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("rendering dashboard failed", "error", err)
		http.Error(w, "could not render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client may have gone away
}
