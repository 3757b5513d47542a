package domain

import (
	"fmt"
	"math"
)

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// IndiaBounds approximates the Indian subcontinent.
var IndiaBounds = BoundingBox{MinLat: 8, MaxLat: 37, MinLng: 68, MaxLng: 97}

// MapCenter is the initial map view, roughly the geographic centre of India.
var MapCenter = Geo{Lat: 22.9734, Lng: 78.6569}

// Contains reports whether the point lies inside the box. NaN coordinates
// are never inside.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Inspection is the map inspector's answer for a clicked point.
type Inspection struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Inside    bool    `json:"inside"`
	RiskScore float64 `json:"risk_score,omitempty"`
	Message   string  `json:"message"`
}

// RiskScore returns the pseudo disaster-proneness percentage for a point:
// (lat*lng) mod 100, rounded to two decimals. It is deterministic and has no
// physical meaning. The second result is false outside IndiaBounds.
func RiskScore(lat, lng float64) (float64, bool) {
	if !IndiaBounds.Contains(lat, lng) {
		return 0, false
	}
	return math.Round(math.Mod(lat*lng, 100)*100) / 100, true
}

// Inspect builds the inspector popup content for a point.
func Inspect(lat, lng float64) Inspection {
	score, ok := RiskScore(lat, lng)
	if !ok {
		return Inspection{Lat: lat, Lng: lng, Message: "Outside India boundaries"}
	}
	return Inspection{
		Lat:       lat,
		Lng:       lng,
		Inside:    true,
		RiskScore: score,
		Message:   fmt.Sprintf("Lat: %.2f, Lng: %.2f, Disaster Proneness: %.2f%%", lat, lng, score),
	}
}
