package domain

import (
	"encoding/json"
	"time"
)

// Severity ranks an incident for the panel's status bars.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Color is the badge colour for the severity. Unknown severities are grey.
func (s Severity) Color() string {
	switch s {
	case SeverityCritical:
		return "#ef4444"
	case SeverityHigh:
		return "#f97316"
	case SeverityMedium:
		return "#eab308"
	case SeverityLow:
		return "#22c55e"
	default:
		return "#6b7280"
	}
}

// Incident types the panel counts separately. Other types (flood, cyclone,
// ...) pass through unchanged.
const (
	IncidentFire       = "fire"
	IncidentEarthquake = "earthquake"
	IncidentFlood      = "flood"
)

// Incident is one entry in the critical incidents panel. Incidents carry no
// identity and are never deduplicated.
type Incident struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Location string   `json:"location"`
}

var placeholderIncidents = []Incident{
	{Type: IncidentFire, Severity: SeverityCritical, Location: "Mumbai"},
	{Type: IncidentEarthquake, Severity: SeverityHigh, Location: "Delhi"},
	{Type: IncidentFlood, Severity: SeverityMedium, Location: "Assam"},
	{Type: IncidentFire, Severity: SeverityMedium, Location: "Chennai"},
	{Type: IncidentEarthquake, Severity: SeverityLow, Location: "Punjab"},
}

// PlaceholderIncidents returns a fresh copy of the fixed incidents that are
// always shown, with or without backend data.
func PlaceholderIncidents() []Incident {
	out := make([]Incident, len(placeholderIncidents))
	copy(out, placeholderIncidents)
	return out
}

// DecodeIncidents sniffs an incident payload. It accepts a bare JSON array or
// an object with an "incidents" array; any other body reports false.
// Elements that do not decode as an incident are skipped.
func DecodeIncidents(body []byte) ([]Incident, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		var wrapped struct {
			Incidents []json.RawMessage `json:"incidents"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Incidents == nil {
			return nil, false
		}
		raw = wrapped.Incidents
	}

	list := make([]Incident, 0, len(raw))
	for _, el := range raw {
		var inc Incident
		if err := json.Unmarshal(el, &inc); err != nil {
			continue
		}
		list = append(list, inc)
	}
	return list, true
}

// MergeIncidents prefixes remote incidents with the placeholders.
func MergeIncidents(remote []Incident) []Incident {
	merged := make([]Incident, 0, len(placeholderIncidents)+len(remote))
	merged = append(merged, placeholderIncidents...)
	return append(merged, remote...)
}

// SeverityStat is one bar in the severity chart.
type SeverityStat struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// IncidentSummary is the panel's aggregate view.
type IncidentSummary struct {
	Incidents   []Incident     `json:"incidents"`
	Total       int            `json:"total"`
	Fires       int            `json:"fires"`
	Earthquakes int            `json:"earthquakes"`
	Severity    []SeverityStat `json:"severity"`
	Loading     bool           `json:"loading"`
	LastUpdate  time.Time      `json:"last_update"`
}

// SummarizeIncidents counts incidents by type and severity. Severity bars are
// always emitted in Critical, High, Medium, Low order.
func SummarizeIncidents(incidents []Incident) IncidentSummary {
	sum := IncidentSummary{
		Incidents: incidents,
		Total:     len(incidents),
	}

	counts := make(map[Severity]int, 4)
	for _, inc := range incidents {
		switch inc.Type {
		case IncidentFire:
			sum.Fires++
		case IncidentEarthquake:
			sum.Earthquakes++
		}
		counts[inc.Severity]++
	}

	for _, s := range []struct {
		name string
		sev  Severity
	}{
		{"Critical", SeverityCritical},
		{"High", SeverityHigh},
		{"Medium", SeverityMedium},
		{"Low", SeverityLow},
	} {
		sum.Severity = append(sum.Severity, SeverityStat{Name: s.name, Value: counts[s.sev], Color: s.sev.Color()})
	}
	return sum
}
