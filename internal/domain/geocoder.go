package domain

// Geocoder resolves map coordinates for a county. Every implementation must
// return usable coordinates for any input; the exporter's contract (non-null
// lat/lon on every record) depends on it.
type Geocoder interface {
	Coordinates(county, state string) (lat, lon float64)
}
