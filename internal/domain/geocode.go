package domain

import (
	"context"
	"log/slog"
	"strings"
)

// GeocodeRegion scopes forward lookups of free-text form locations.
const GeocodeRegion = "India"

// FormLocation is the location part of a form: what the user typed and what
// the browser reported.
type FormLocation struct {
	Place     string
	Latitude  FlexFloat
	Longitude FlexFloat
	Source    string
}

// HasCoords reports whether usable coordinates are present. The browser sends
// 0,0 or nothing when geolocation is denied.
func (l FormLocation) HasCoords() bool {
	return l.Latitude.Valid && l.Longitude.Valid && (l.Latitude.Value != 0 || l.Longitude.Value != 0)
}

// EnrichWithGeocoding fills whichever half of a form location is missing.
// Coordinates without a place are reverse geocoded; a place without
// coordinates is forward geocoded. If geocoder is nil or the lookup fails,
// the location is returned unchanged apart from Source.
func EnrichWithGeocoding(ctx context.Context, loc FormLocation, geocoder Geocoder, logger *slog.Logger) FormLocation {
	if geocoder == nil {
		return loc
	}

	hasCoords := loc.HasCoords()
	hasPlace := strings.TrimSpace(loc.Place) != ""

	switch {
	case !hasCoords && hasPlace:
		result, err := geocoder.ForwardGeocode(ctx, loc.Place, GeocodeRegion)
		if err != nil {
			logger.Warn("forward geocoding failed", "place", loc.Place, "error", err)
			loc.Source = GeoSourceFailed
			return loc
		}
		if result.Lat != 0 || result.Lng != 0 {
			loc.Latitude = Float(result.Lat)
			loc.Longitude = Float(result.Lng)
			loc.Source = GeoSourceForward
			return loc
		}

	case hasCoords && !hasPlace:
		result, err := geocoder.ReverseGeocode(ctx, loc.Latitude.Value, loc.Longitude.Value)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"lat", loc.Latitude.Value,
				"lng", loc.Longitude.Value,
				"error", err,
			)
			loc.Source = GeoSourceFailed
			return loc
		}
		if result.FormattedAddress != "" {
			loc.Place = result.FormattedAddress
			loc.Source = GeoSourceReverse
			return loc
		}
	}

	loc.Source = GeoSourceOriginal
	return loc
}

// Location extracts the volunteer's location.
func (f VolunteerForm) Location() FormLocation {
	return FormLocation{Place: f.CurrentLocation, Latitude: f.Latitude, Longitude: f.Longitude}
}

// WithLocation returns a copy of the form with the location applied.
func (f VolunteerForm) WithLocation(loc FormLocation) VolunteerForm {
	f.CurrentLocation = loc.Place
	f.Latitude = loc.Latitude
	f.Longitude = loc.Longitude
	return f
}

// Location extracts the help request's location.
func (f HelpRequestForm) Location() FormLocation {
	return FormLocation{Place: f.LocationAddress, Latitude: f.Latitude, Longitude: f.Longitude}
}

// WithLocation returns a copy of the form with the location applied.
func (f HelpRequestForm) WithLocation(loc FormLocation) HelpRequestForm {
	f.LocationAddress = loc.Place
	f.Latitude = loc.Latitude
	f.Longitude = loc.Longitude
	return f
}
