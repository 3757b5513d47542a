// Package domain models the hazard, incident and relief-form data behind the
// Sahayata dashboard.
//
// # Hazard Feeds
//
// All hazard data arrives through a single backend proxy endpoint,
// /fetchDisasterData. The same endpoint is read as three logical sources,
// each with its own wire format:
//
//	NASA  (FIRMS active fires)   delimited text, header row first
//	                             "latitude,longitude,brightness,..." (>= 6 columns)
//	USGS  (earthquakes)          GeoJSON FeatureCollection,
//	                             geometry.coordinates = [lng, lat, depth]
//	GDACS (UN disaster alerts)   RSS/XML with <georss:point>lat lng</georss:point>
//
// # Heat Points
//
// Every source is normalized into [lat, lng, intensity] triples. Intensity
// is the raw magnitude scaled into [0,1] and raised to a per-source floor so
// that weak events stay visible on the map:
//
//	NASA:  max(0.3, min(1, brightness / 400))   brightness in Kelvin
//	USGS:  max(0.4, min(1, magnitude / 7))      Richter magnitude
//	GDACS: 0.8                                  alerts carry no magnitude
//
// Unparseable magnitudes collapse to the floor. Malformed rows and entries
// are skipped without error.
//
// # Bounding Box
//
// Points are kept only inside [IndiaBounds]: latitude 8..37, longitude
// 68..97, inclusive. Points outside are dropped silently.
//
// # Incidents
//
// The incident panel reads the same proxy endpoint and sniffs the body shape:
// a JSON array of incidents, an object with an "incidents" array, or anything
// else (ignored). The result is always prefixed with a fixed placeholder list,
// see [PlaceholderIncidents].
//
// # Relief Forms
//
// Volunteer, donation and help-request forms mirror the browser form state
// field for field (camelCase JSON). [VolunteerForm.Payload] and
// [HelpRequestForm.Payload] reshape coordinates the way the backend expects.
package domain
