package geo

import "math"

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two points in meters.
func HaversineMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(a, b Coordinate) float64 {
	return HaversineMeters(a, b) / 1000
}

// Midpoint returns the coordinate-wise average of two points. At city scale the
// error against the true geodesic midpoint is a few meters.
func Midpoint(a, b Coordinate) Coordinate {
	return Coordinate{Lng: (a.Lng + b.Lng) / 2, Lat: (a.Lat + b.Lat) / 2}
}

// Interpolate returns the point a fraction f of the way from a to b.
func Interpolate(a, b Coordinate, f float64) Coordinate {
	return Coordinate{
		Lng: a.Lng + (b.Lng-a.Lng)*f,
		Lat: a.Lat + (b.Lat-a.Lat)*f,
	}
}
