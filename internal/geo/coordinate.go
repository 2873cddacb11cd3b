// Package geo provides coordinate math for meeting-point search: great-circle
// distance, polygon containment and bounding boxes.
package geo

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// Coordinate is a WGS84 position. The JSON form is the [lng, lat] pair used by
// GeoJSON and the Mapbox APIs.
type Coordinate struct {
	Lng float64
	Lat float64
}

// NewCoordinate returns a Coordinate from longitude and latitude.
func NewCoordinate(lng, lat float64) Coordinate {
	return Coordinate{Lng: lng, Lat: lat}
}

// Valid reports whether the coordinate is a finite WGS84 position.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lng) || math.IsNaN(c.Lat) || math.IsInf(c.Lng, 0) || math.IsInf(c.Lat, 0) {
		return false
	}
	return c.Lng >= -180 && c.Lng <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// Key returns a stable string form rounded to ~1m, suitable for cache keys.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.5f,%.5f", c.Lng, c.Lat)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Lng, c.Lat)
}

// MarshalJSON encodes the coordinate as [lng, lat].
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lng, c.Lat})
}

// UnmarshalJSON accepts either [lng, lat] or {"lng": .., "lat": ..}.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return eris.Errorf("geo: coordinate needs 2 values, got %d", len(pair))
		}
		c.Lng, c.Lat = pair[0], pair[1]
		return nil
	}

	var obj struct {
		Lng *float64 `json:"lng"`
		Lat *float64 `json:"lat"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return eris.Wrap(err, "geo: decode coordinate")
	}
	if obj.Lng == nil || obj.Lat == nil {
		return eris.New("geo: coordinate object needs lng and lat")
	}
	c.Lng, c.Lat = *obj.Lng, *obj.Lat
	return nil
}
