package tfl

// journeyResponse is the subset of the JourneyResults payload the client reads.
type journeyResponse struct {
	Journeys []journeyJSON `json:"journeys"`
}

type journeyJSON struct {
	Duration int       `json:"duration"`
	Legs     []legJSON `json:"legs"`
}

type legJSON struct {
	Duration       int          `json:"duration"`
	Mode           namedJSON    `json:"mode"`
	DeparturePoint pointJSON    `json:"departurePoint"`
	ArrivalPoint   pointJSON    `json:"arrivalPoint"`
	RouteOptions   []namedJSON  `json:"routeOptions"`
	Path           *pathJSON    `json:"path"`
	Instruction    *summaryJSON `json:"instruction"`
}

type namedJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type pointJSON struct {
	CommonName string  `json:"commonName"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

type pathJSON struct {
	StopPoints []namedJSON `json:"stopPoints"`
}

type summaryJSON struct {
	Summary string `json:"summary"`
}
