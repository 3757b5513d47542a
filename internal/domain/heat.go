package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// HeatPoint is a weighted coordinate rendered on the heat layer. It
// serializes as a bare [lat, lng, intensity] array.
type HeatPoint struct {
	Lat       float64
	Lng       float64
	Intensity float64
}

func (p HeatPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{p.Lat, p.Lng, p.Intensity})
}

func (p *HeatPoint) UnmarshalJSON(data []byte) error {
	var triple [3]float64
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("decode heat point: %w", err)
	}
	p.Lat, p.Lng, p.Intensity = triple[0], triple[1], triple[2]
	return nil
}

// Source identifies one logical hazard feed behind the proxy endpoint.
type Source string

const (
	SourceFIRMS Source = "NASA"
	SourceUSGS  Source = "USGS"
	SourceGDACS Source = "GDACS"
	// SourceAll selects every feed.
	SourceAll Source = "ALL"
)

// Sources lists the concrete feeds in merge order.
var Sources = []Source{SourceFIRMS, SourceUSGS, SourceGDACS}

// StatusLoading is shown for a source while its fetch is in flight.
const StatusLoading = "Loading..."

// ParseSource normalizes a selector value. An empty string selects all feeds.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToUpper(strings.TrimSpace(s))) {
	case "", SourceAll:
		return SourceAll, nil
	case SourceFIRMS, "FIRMS":
		return SourceFIRMS, nil
	case SourceUSGS:
		return SourceUSGS, nil
	case SourceGDACS:
		return SourceGDACS, nil
	default:
		return "", fmt.Errorf("unknown data source %q", s)
	}
}

// Expand returns the concrete feeds a selector covers.
func (s Source) Expand() []Source {
	if s == SourceAll {
		return Sources
	}
	return []Source{s}
}

// Label is the selector caption.
func (s Source) Label() string {
	switch s {
	case SourceFIRMS:
		return "Active Fires"
	case SourceUSGS:
		return "Earthquakes"
	case SourceGDACS:
		return "Disasters"
	case SourceAll:
		return "All Real-Time Sources"
	default:
		return string(s)
	}
}

// Key is the lower-case status key used in API responses.
func (s Source) Key() string {
	switch s {
	case SourceFIRMS:
		return "nasa"
	case SourceUSGS:
		return "usgs"
	case SourceGDACS:
		return "gdacs"
	default:
		return strings.ToLower(string(s))
	}
}

// CountStatus describes a successful fetch.
func (s Source) CountStatus(n int) string {
	switch s {
	case SourceFIRMS:
		return fmt.Sprintf("%d fires detected", n)
	case SourceUSGS:
		return fmt.Sprintf("%d earthquakes", n)
	case SourceGDACS:
		return fmt.Sprintf("%d UN alerts", n)
	default:
		return fmt.Sprintf("%d points", n)
	}
}

// FailureStatus describes a failed fetch.
func (s Source) FailureStatus() string {
	if s == SourceFIRMS {
		return "API temporarily unavailable"
	}
	return "API Error"
}

// ParseFeed converts a raw feed body into heat points using the parser for src.
func ParseFeed(src Source, body []byte) ([]HeatPoint, error) {
	switch src {
	case SourceFIRMS:
		return ParseFIRMS(string(body)), nil
	case SourceUSGS:
		return ParseUSGS(body)
	case SourceGDACS:
		return ParseGDACS(string(body)), nil
	default:
		return nil, fmt.Errorf("no parser for source %q", src)
	}
}

// HeatSnapshot is the most recent aggregate of all selected feeds.
type HeatSnapshot struct {
	Source     Source            `json:"source"`
	Points     []HeatPoint       `json:"points"`
	Status     map[string]string `json:"status"`
	LastUpdate time.Time         `json:"last_update"`
}

// weigh scales a raw magnitude into [floor, 1]. NaN and negative inputs
// collapse to the floor.
func weigh(raw, scale, floor float64) float64 {
	v := math.Min(1, raw/scale)
	if math.IsNaN(v) || v < floor {
		return floor
	}
	return v
}
