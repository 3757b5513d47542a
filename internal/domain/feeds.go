package domain

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	firmsMinColumns  = 6
	firmsBrightScale = 400.0 // Kelvin; hotter detections saturate
	firmsFloor       = 0.3

	usgsMagScale = 7.0
	usgsFloor    = 0.4

	gdacsIntensity = 0.8
)

// georssPointRe is the tolerant fallback for alert feeds that are not
// well-formed XML, e.g. "<georss:point>19.07 72.87</georss:point>".
var georssPointRe = regexp.MustCompile(`<georss:point>\s*([\d.-]+)\s+([\d.-]+)\s*</georss:point>`)

// ParseFIRMS reads FIRMS active-fire rows. The first record is the header.
// Columns 0-2 are latitude, longitude and brightness; rows with fewer than
// six columns, unparseable coordinates or coordinates outside IndiaBounds
// are skipped.
func ParseFIRMS(text string) []HeatPoint {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	points := make([]HeatPoint, 0)
	header := true
	for {
		cols, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		if header {
			header = false
			continue
		}
		if len(cols) < firmsMinColumns {
			continue
		}

		lat, errLat := parseCoordinate(cols[0])
		lng, errLng := parseCoordinate(cols[1])
		if errLat != nil || errLng != nil || !IndiaBounds.Contains(lat, lng) {
			continue
		}
		brightness := parseFloatOrNaN(cols[2])
		points = append(points, HeatPoint{Lat: lat, Lng: lng, Intensity: weigh(brightness, firmsBrightScale, firmsFloor)})
	}
	return points
}

// usgsFeature is one GeoJSON earthquake feature. Coordinates are [lng, lat, depth].
type usgsFeature struct {
	Geometry *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Mag *float64 `json:"mag"`
	} `json:"properties"`
}

// ParseUSGS reads a GeoJSON earthquake feature collection. A body that is
// valid JSON but carries no "features" member yields no points; a body that
// is not JSON at all is an error. Features without a usable point geometry
// or outside IndiaBounds are skipped.
func ParseUSGS(body []byte) ([]HeatPoint, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		if json.Valid(body) {
			return []HeatPoint{}, nil
		}
		return nil, fmt.Errorf("decode earthquake feed: %w", err)
	}

	raw, ok := doc["features"]
	if !ok || string(raw) == "null" {
		return []HeatPoint{}, nil
	}

	var features []usgsFeature
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, fmt.Errorf("decode earthquake features: %w", err)
	}

	points := make([]HeatPoint, 0, len(features))
	for _, f := range features {
		if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		lng, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		if !IndiaBounds.Contains(lat, lng) {
			continue
		}
		mag := 0.0
		if f.Properties.Mag != nil {
			mag = *f.Properties.Mag
		}
		points = append(points, HeatPoint{Lat: lat, Lng: lng, Intensity: weigh(mag, usgsMagScale, usgsFloor)})
	}
	return points, nil
}

// ParseGDACS extracts <georss:point> coordinates from an alert feed. Well-formed
// documents are walked as an XML tree; anything else is scanned with a
// pattern so a single bad entity does not blank the whole feed.
func ParseGDACS(text string) []HeatPoint {
	pairs, ok := georssPointsXML(text)
	if !ok {
		pairs = georssPointsScan(text)
	}

	points := make([]HeatPoint, 0, len(pairs))
	for _, pair := range pairs {
		lat, errLat := parseCoordinate(pair[0])
		lng, errLng := parseCoordinate(pair[1])
		if errLat != nil || errLng != nil || !IndiaBounds.Contains(lat, lng) {
			continue
		}
		points = append(points, HeatPoint{Lat: lat, Lng: lng, Intensity: gdacsIntensity})
	}
	return points
}

func georssPointsXML(text string) ([][2]string, bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil || doc.Root() == nil {
		return nil, false
	}

	var pairs [][2]string
	for _, el := range doc.FindElements("//georss:point") {
		fields := strings.Fields(el.Text())
		if len(fields) != 2 {
			continue
		}
		pairs = append(pairs, [2]string{fields[0], fields[1]})
	}
	return pairs, true
}

func georssPointsScan(text string) [][2]string {
	matches := georssPointRe.FindAllStringSubmatch(text, -1)
	pairs := make([][2]string, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, [2]string{m[1], m[2]})
	}
	return pairs
}

// parseCoordinate parses a decimal degree value and rejects NaN and infinities.
func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", s)
	}
	return v, nil
}

func parseFloatOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
