package model

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/sells-group/commonplace/internal/geo"
)

// Transport modes as named by the journey planner.
const (
	ModeWalking       = "walking"
	ModeTube          = "tube"
	ModeBus           = "bus"
	ModeNationalRail  = "national-rail"
	ModeOverground    = "overground"
	ModeElizabethLine = "elizabeth-line"
	ModeDLR           = "dlr"
	ModeTram          = "tram"
)

// HeavyRail reports whether mode runs on segregated rail.
func HeavyRail(mode string) bool {
	switch mode {
	case ModeTube, ModeNationalRail, ModeOverground, ModeElizabethLine, ModeDLR:
		return true
	}
	return false
}

// Leg is one segment of a journey on a single mode.
type Leg struct {
	Mode            string         `json:"mode"`
	DurationMinutes int            `json:"duration"`
	DepartureName   string         `json:"departure"`
	ArrivalName     string         `json:"arrival"`
	LineName        string         `json:"line,omitempty"`
	Departure       geo.Coordinate `json:"departurePoint"`
	Arrival         geo.Coordinate `json:"arrivalPoint"`
	Stops           []string       `json:"stops,omitempty"`
}

// Walking reports whether the leg is on foot.
func (l Leg) Walking() bool { return l.Mode == ModeWalking }

// Journey is the planner's best trip between two points.
type Journey struct {
	DurationMinutes int    `json:"duration"`
	Legs            []Leg  `json:"legs"`
	Strategy        string `json:"strategy,omitempty"`
}

// TransitLegs returns the legs that are not walks.
func (j Journey) TransitLegs() []Leg {
	return lo.Filter(j.Legs, func(l Leg, _ int) bool { return !l.Walking() })
}

// JourneyDetail summarises one traveller's journey to a candidate.
type JourneyDetail struct {
	DurationMinutes  int      `json:"duration"`
	InterchangeCount int      `json:"changes"`
	ModesUsed        []string `json:"modes"`
	RouteSummary     string   `json:"route"`
}

const shortWalkMinutes = 5

// DetailFromJourney derives the per-traveller summary of a journey. Every
// boarding after the first counts as a change; walks before, between and
// after are free.
func DetailFromJourney(j Journey) JourneyDetail {
	transit := len(j.TransitLegs())

	var parts []string
	for _, l := range j.Legs {
		if l.Walking() {
			if l.DurationMinutes > shortWalkMinutes {
				parts = append(parts, fmt.Sprintf("Walk %dmin", l.DurationMinutes))
			}
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %dmin", l.Mode, l.DurationMinutes))
	}
	summary := strings.Join(parts, " → ")
	if summary == "" {
		summary = "Direct route"
	}

	return JourneyDetail{
		DurationMinutes:  j.DurationMinutes,
		InterchangeCount: max(0, transit-1),
		ModesUsed:        lo.Uniq(lo.Map(j.Legs, func(l Leg, _ int) string { return l.Mode })),
		RouteSummary:     summary,
	}
}
