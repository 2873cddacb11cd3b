package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, c.Len(), 40)
	area := geo.DefaultServiceArea()
	var hubs, districts int
	for _, a := range c.All() {
		assert.True(t, area.Contains(a.Coordinate), a.Name)
		assert.NotEmpty(t, a.Zones, a.Name)
		switch a.Category {
		case model.CategoryMajorHub:
			hubs++
		case model.CategoryDistrict:
			districts++
		}
	}
	assert.Positive(t, hubs)
	assert.Positive(t, districts)
}

func TestLookup(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	a, ok := c.Lookup("earls court")
	require.True(t, ok)
	assert.Equal(t, "Earl's Court", a.Name)
	assert.Equal(t, []int{1, 2}, a.Zones)

	_, ok = c.Lookup("Atlantis")
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	tests := []struct {
		stop string
		want string
	}{
		{"Earl's Court Underground Station", "Earl's Court"},
		{"London Bridge Rail Station", "London Bridge"},
		{"Stratford (London) Rail Station", "Stratford"},
		{"Shoreditch High Street Rail Station", "Shoreditch"},
		{"Highbury & Islington Underground Station", "Highbury & Islington"},
	}
	for _, tt := range tests {
		t.Run(tt.stop, func(t *testing.T) {
			a, ok := c.Match(tt.stop)
			require.True(t, ok)
			assert.Equal(t, tt.want, a.Name)
		})
	}

	_, ok := c.Match("Embankment Underground Station")
	assert.False(t, ok, "bank must not match inside embankment")
	_, ok = c.Match("Bow")
	assert.False(t, ok)
}

func TestNearest(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got := c.Nearest(geo.NewCoordinate(-0.1246, 51.5080), 3)
	require.Len(t, got, 3)
	assert.Equal(t, "Charing Cross", got[0].Name)
	for i := 1; i < len(got); i++ {
		prev := geo.HaversineMeters(geo.NewCoordinate(-0.1246, 51.5080), got[i-1].Coordinate)
		cur := geo.HaversineMeters(geo.NewCoordinate(-0.1246, 51.5080), got[i].Coordinate)
		assert.LessOrEqual(t, prev, cur)
	}

	assert.Len(t, c.Nearest(geo.NewCoordinate(0, 51.5), 1000), c.Len())
	assert.Empty(t, c.Nearest(geo.NewCoordinate(0, 51.5), 0))
}

func TestIsInterchange(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.True(t, c.IsInterchange("Waterloo Underground Station"))
	assert.True(t, c.IsInterchange("Balham Junction"))
	assert.False(t, c.IsInterchange("Chalk Farm Underground Station"))
}

func TestNew_Validation(t *testing.T) {
	ok := model.NewCandidateArea("Soho", geo.NewCoordinate(-0.13, 51.51), model.CategoryDistrict, []int{1}, "")

	tests := []struct {
		name  string
		areas []model.CandidateArea
	}{
		{"no name", []model.CandidateArea{model.NewCandidateArea(" ", ok.Coordinate, ok.Category, ok.Zones, "")}},
		{"bad coordinate", []model.CandidateArea{model.NewCandidateArea("X", geo.NewCoordinate(500, 0), ok.Category, ok.Zones, "")}},
		{"bad category", []model.CandidateArea{model.NewCandidateArea("X", ok.Coordinate, "pub", ok.Zones, "")}},
		{"no zones", []model.CandidateArea{model.NewCandidateArea("X", ok.Coordinate, ok.Category, nil, "")}},
		{"duplicate", []model.CandidateArea{ok, model.NewCandidateArea("SOHO", ok.Coordinate, ok.Category, ok.Zones, "")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.areas, nil)
			assert.Error(t, err)
		})
	}

	empty, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "areas.yaml")
	doc := `
areas:
  - {name: "Alpha", lng: -0.1, lat: 51.5, category: district, zones: [2, 1]}
  - {name: "Beta", lng: -0.2, lat: 51.4, category: major_hub, zones: [3]}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "Alpha", c.All()[0].Name)
	assert.Equal(t, []int{1, 2}, c.All()[0].Zones)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = Load([]byte("areas: [oops"))
	assert.Error(t, err)
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.All())
	assert.Nil(t, c.Nearest(geo.NewCoordinate(0, 0), 3))
	_, ok := c.Match("Bank")
	assert.False(t, ok)
}
