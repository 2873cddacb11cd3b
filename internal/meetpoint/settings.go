// Package meetpoint finds fair meeting areas for two travellers: it generates
// candidates from reachability polygons and the direct route between them,
// checks real journeys, scores, and picks a spatially diverse shortlist.
package meetpoint

import (
	"time"

	"github.com/sells-group/commonplace/internal/config"
	"github.com/sells-group/commonplace/internal/geo"
)

// Budget is one reachability step: polygons for Minutes, stopping once StopAt
// candidates have been found.
type Budget struct {
	Minutes int
	StopAt  int
}

// Settings tunes every stage of the search.
type Settings struct {
	Budgets []Budget

	ResultCount        int
	MaxJourneyMinutes  int
	BatchSize          int
	BatchPause         time.Duration
	PrefilterMin       int
	PrefilterMax       int
	PrefilterFraction  float64
	MidpointCandidates int

	DirectStops        int
	DirectSeparationKm float64

	MinSeparationKm float64
	CategoryCap     int

	Estimate Estimator

	ServiceArea geo.BBox
}

// DefaultSettings returns the tuned defaults for London.
func DefaultSettings() Settings {
	return Settings{
		Budgets: []Budget{
			{Minutes: 20, StopAt: 4},
			{Minutes: 30, StopAt: 6},
			{Minutes: 45, StopAt: 10},
			{Minutes: 60, StopAt: 12},
		},
		ResultCount:        3,
		MaxJourneyMinutes:  75,
		BatchSize:          3,
		BatchPause:         200 * time.Millisecond,
		PrefilterMin:       8,
		PrefilterMax:       12,
		PrefilterFraction:  0.6,
		MidpointCandidates: 8,
		DirectStops:        4,
		DirectSeparationKm: 1,
		MinSeparationKm:    2,
		CategoryCap:        2,
		Estimate:           Estimator{OverheadMinutes: 5, MinutesPerKm: 3},
		ServiceArea:        geo.DefaultServiceArea(),
	}
}

// SettingsFromConfig converts loaded configuration into engine settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		ResultCount:        cfg.Search.ResultCount,
		MaxJourneyMinutes:  cfg.Search.MaxJourneyMinutes,
		BatchSize:          cfg.Search.BatchSize,
		BatchPause:         time.Duration(cfg.Search.BatchPauseMs) * time.Millisecond,
		PrefilterMin:       cfg.Search.PrefilterMin,
		PrefilterMax:       cfg.Search.PrefilterMax,
		PrefilterFraction:  cfg.Search.PrefilterFraction,
		MidpointCandidates: cfg.Search.MidpointCandidates,
		DirectStops:        cfg.Search.DirectStops,
		DirectSeparationKm: cfg.Search.DirectSeparationKm,
		MinSeparationKm:    cfg.Search.MinSeparationKm,
		CategoryCap:        cfg.Search.CategoryCap,
		Estimate: Estimator{
			OverheadMinutes: cfg.Search.OverheadMinutes,
			MinutesPerKm:    cfg.Search.MinutesPerKm,
		},
		ServiceArea: cfg.ServiceArea,
	}
	for _, b := range cfg.Search.Budgets {
		s.Budgets = append(s.Budgets, Budget{Minutes: b.Minutes, StopAt: b.StopAt})
	}
	return s
}
