package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng" mapstructure:"min_lng"`
	MinLat float64 `json:"min_lat" mapstructure:"min_lat"`
	MaxLng float64 `json:"max_lng" mapstructure:"max_lng"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat"`
}

// DefaultServiceArea is Greater London with a margin for the outer zones.
func DefaultServiceArea() BBox {
	return BBox{MinLng: -0.56, MinLat: 51.26, MaxLng: 0.34, MaxLat: 51.72}
}

// Contains reports whether c lies within the box, borders included.
func (b BBox) Contains(c Coordinate) bool {
	return c.Lng >= b.MinLng && c.Lng <= b.MaxLng && c.Lat >= b.MinLat && c.Lat <= b.MaxLat
}

// Empty reports whether the box encloses no area.
func (b BBox) Empty() bool {
	return b.MinLng >= b.MaxLng || b.MinLat >= b.MaxLat
}

// Intersect returns the overlap of two boxes and whether it is non-empty.
func (b BBox) Intersect(o BBox) (BBox, bool) {
	out := BBox{
		MinLng: max(b.MinLng, o.MinLng),
		MinLat: max(b.MinLat, o.MinLat),
		MaxLng: min(b.MaxLng, o.MaxLng),
		MaxLat: min(b.MaxLat, o.MaxLat),
	}
	return out, !out.Empty()
}

// BoundsOf computes the bounding box of a set of coordinates. An empty input
// yields the zero box.
func BoundsOf(coords []Coordinate) BBox {
	if len(coords) == 0 {
		return BBox{}
	}
	b := BBox{MinLng: coords[0].Lng, MaxLng: coords[0].Lng, MinLat: coords[0].Lat, MaxLat: coords[0].Lat}
	for _, c := range coords[1:] {
		b.MinLng = min(b.MinLng, c.Lng)
		b.MaxLng = max(b.MaxLng, c.Lng)
		b.MinLat = min(b.MinLat, c.Lat)
		b.MaxLat = max(b.MaxLat, c.Lat)
	}
	return b
}

// Ring is a closed polygon boundary prepared for repeated containment tests.
type Ring struct {
	ring   *geom.LinearRing
	bounds *geom.Bounds
}

// NewRing builds a Ring from an ordered list of vertices. The ring is closed
// automatically when the last vertex differs from the first.
func NewRing(coords []Coordinate) (*Ring, error) {
	if len(coords) < 3 {
		return nil, eris.Errorf("geo: ring needs at least 3 vertices, got %d", len(coords))
	}

	flat := make([]float64, 0, 2*(len(coords)+1))
	for _, c := range coords {
		if !c.Valid() {
			return nil, eris.Errorf("geo: invalid ring vertex %s", c)
		}
		flat = append(flat, c.Lng, c.Lat)
	}
	if first, last := coords[0], coords[len(coords)-1]; first != last {
		flat = append(flat, first.Lng, first.Lat)
	}

	lr := geom.NewLinearRingFlat(geom.XY, flat)
	return &Ring{ring: lr, bounds: lr.Bounds()}, nil
}

// Contains reports whether c lies inside the ring. Points on the boundary
// count as inside.
func (r *Ring) Contains(c Coordinate) bool {
	pt := geom.Coord{c.Lng, c.Lat}
	if !r.bounds.OverlapsPoint(geom.XY, pt) {
		return false
	}
	return xy.IsPointInRing(geom.XY, pt, r.ring.FlatCoords())
}

// Bounds returns the ring's bounding box.
func (r *Ring) Bounds() BBox {
	return BBox{
		MinLng: r.bounds.Min(0),
		MinLat: r.bounds.Min(1),
		MaxLng: r.bounds.Max(0),
		MaxLat: r.bounds.Max(1),
	}
}

// PointInPolygon is a one-shot containment test for callers that do not
// reuse the ring.
func PointInPolygon(c Coordinate, polygon []Coordinate) bool {
	r, err := NewRing(polygon)
	if err != nil {
		return false
	}
	return r.Contains(c)
}
