package meetpoint

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

// Origin is a traveller's starting point: free text to be geocoded or an
// explicit coordinate.
type Origin struct {
	Text       string
	Coordinate *geo.Coordinate
}

// TextOrigin returns an origin to be resolved from text.
func TextOrigin(text string) Origin { return Origin{Text: text} }

// PointOrigin returns an origin at c.
func PointOrigin(c geo.Coordinate) Origin { return Origin{Coordinate: &c} }

// Empty reports whether the origin carries neither text nor a coordinate.
func (o Origin) Empty() bool {
	return o.Coordinate == nil && strings.TrimSpace(o.Text) == ""
}

// MarshalJSON writes a coordinate as [lng, lat] and text as a string.
func (o Origin) MarshalJSON() ([]byte, error) {
	if o.Coordinate != nil {
		return json.Marshal(*o.Coordinate)
	}
	return json.Marshal(o.Text)
}

// UnmarshalJSON accepts a string, [lng, lat] or {"lng": .., "lat": ..}.
func (o *Origin) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "meetpoint: decode location text")
		}
		*o = Origin{Text: s}
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*o = Origin{}
		return nil
	}
	var c geo.Coordinate
	if err := json.Unmarshal(data, &c); err != nil {
		return eris.Wrap(err, "meetpoint: decode location coordinate")
	}
	*o = Origin{Coordinate: &c}
	return nil
}

// Request is a meeting-point search.
type Request struct {
	Location1   Origin     `json:"location1"`
	Location2   Origin     `json:"location2"`
	MeetingTime *time.Time `json:"meetingTime,omitempty"`
	// VenueTypes is echoed back but does not affect ranking.
	VenueTypes []string `json:"venueTypes,omitempty"`
}

// Result is one ranked meeting area.
type Result struct {
	Name           string              `json:"name"`
	Coordinates    geo.Coordinate      `json:"coordinates"`
	Rank           int                 `json:"rank"`
	Journey1       model.JourneyDetail `json:"journey1"`
	Journey2       model.JourneyDetail `json:"journey2"`
	TimeDifference float64             `json:"timeDifference"`
	AverageTime    float64             `json:"averageTime"`
	Score          float64             `json:"score"`
	Breakdown      model.Breakdown     `json:"breakdown"`
	Category       model.Category      `json:"category"`
	Zones          []int               `json:"zones"`
	RouteType      model.RouteType     `json:"routeType"`
	Confidence     model.Confidence    `json:"confidence"`
}

// Metadata describes how a search ran.
type Metadata struct {
	SearchID       string         `json:"searchId"`
	SearchTime     time.Time      `json:"searchTime"`
	DurationMs     int64          `json:"durationMs"`
	Location1      geo.Coordinate `json:"location1"`
	Location2      geo.Coordinate `json:"location2"`
	Location1Name  string         `json:"location1Name"`
	Location2Name  string         `json:"location2Name"`
	VenueTypes     []string       `json:"venueTypes"`
	States         []State        `json:"states"`
	Trace          Trace          `json:"trace"`
	Relaxed        bool           `json:"relaxed"`
	ScoringVersion string         `json:"scoringVersion"`
}

// Response is a successful search.
type Response struct {
	Success  bool     `json:"success"`
	Results  []Result `json:"results"`
	Metadata Metadata `json:"metadata"`
}

// NewResults ranks a selection from 1 in acceptance order.
func NewResults(sel Selection) []Result {
	out := make([]Result, 0, len(sel.Items))
	for i, it := range sel.Items {
		c := it.Candidate
		out = append(out, Result{
			Name:           c.Area.Name,
			Coordinates:    c.Area.Coordinate,
			Rank:           i + 1,
			Journey1:       c.Journey1,
			Journey2:       c.Journey2,
			TimeDifference: c.TimeDifference,
			AverageTime:    c.AverageTime,
			Score:          c.Score,
			Breakdown:      c.Breakdown,
			Category:       c.Area.Category,
			Zones:          c.Area.Zones,
			RouteType:      c.Area.RouteType,
			Confidence:     c.Confidence,
		})
	}
	return out
}
