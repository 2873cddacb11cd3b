// Package model defines the records passed between meeting-point search
// stages. Each stage transition has its own constructor so a record is fully
// formed when it leaves the stage that built it.
package model

import (
	"slices"

	"github.com/samber/lo"

	"github.com/sells-group/commonplace/internal/geo"
)

// Category classifies a candidate area.
type Category string

const (
	CategoryMajorHub Category = "major_hub"
	CategoryDistrict Category = "district"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryMajorHub || c == CategoryDistrict
}

// RouteType records which strategy proposed a candidate.
type RouteType string

const (
	RouteIsochrone RouteType = "isochrone_intersection"
	RouteDirect    RouteType = "direct_route"
	RouteMidpoint  RouteType = "midpoint"
	RouteEstimate  RouteType = "estimate"
)

// CandidateArea is a named place that may be proposed as a meeting point.
type CandidateArea struct {
	Name       string         `json:"name"`
	Coordinate geo.Coordinate `json:"coordinates"`
	Category   Category       `json:"category"`
	Zones      []int          `json:"zones"`
	RouteType  RouteType      `json:"routeType,omitempty"`
}

// NewCandidateArea builds a CandidateArea with its zones sorted and deduplicated.
func NewCandidateArea(name string, c geo.Coordinate, cat Category, zones []int, rt RouteType) CandidateArea {
	z := lo.Uniq(zones)
	slices.Sort(z)
	return CandidateArea{
		Name:       name,
		Coordinate: c,
		Category:   cat,
		Zones:      z,
		RouteType:  rt,
	}
}

// Key is the identity used for deduplication.
func (a CandidateArea) Key() string {
	return NormalizeName(a.Name)
}

// InZone1 reports whether the area touches travel zone 1.
func (a CandidateArea) InZone1() bool {
	return slices.Contains(a.Zones, 1)
}

// IsMajorHub reports whether the area is a major interchange.
func (a CandidateArea) IsMajorHub() bool {
	return a.Category == CategoryMajorHub
}

// WithRouteType returns a copy tagged with rt.
func (a CandidateArea) WithRouteType(rt RouteType) CandidateArea {
	return NewCandidateArea(a.Name, a.Coordinate, a.Category, a.Zones, rt)
}
