// Package catalog holds the curated set of London areas that can be proposed
// as meeting points.
package catalog

import (
	_ "embed"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
)

//go:embed data/london.yaml
var londonYAML []byte

// minContainmentKey keeps short keys like "bow" from matching inside
// unrelated stop names.
const minContainmentKey = 4

type fileFormat struct {
	InterchangeKeywords []string    `yaml:"interchange_keywords"`
	Areas               []areaEntry `yaml:"areas"`
}

type areaEntry struct {
	Name     string  `yaml:"name"`
	Lng      float64 `yaml:"lng"`
	Lat      float64 `yaml:"lat"`
	Category string  `yaml:"category"`
	Zones    []int   `yaml:"zones"`
}

// Catalog is an immutable, ordered set of candidate areas.
type Catalog struct {
	areas    []model.CandidateArea
	index    map[string]int
	keywords []string
}

// Default returns the embedded London catalog.
func Default() (*Catalog, error) {
	return Load(londonYAML)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Load(data)
}

// Load parses a YAML catalog document.
func Load(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}

	areas := make([]model.CandidateArea, 0, len(f.Areas))
	for _, e := range f.Areas {
		areas = append(areas, model.NewCandidateArea(
			strings.TrimSpace(e.Name),
			geo.NewCoordinate(e.Lng, e.Lat),
			model.Category(e.Category),
			e.Zones,
			"",
		))
	}
	return New(areas, f.InterchangeKeywords)
}

// New validates areas and builds a Catalog preserving their order.
func New(areas []model.CandidateArea, interchangeKeywords []string) (*Catalog, error) {
	c := &Catalog{
		areas: make([]model.CandidateArea, 0, len(areas)),
		index: make(map[string]int, len(areas)),
	}
	for i, a := range areas {
		key := a.Key()
		switch {
		case key == "":
			return nil, eris.Errorf("catalog: area %d has no name", i)
		case !a.Coordinate.Valid():
			return nil, eris.Errorf("catalog: area %q has invalid coordinates %s", a.Name, a.Coordinate)
		case !a.Category.Valid():
			return nil, eris.Errorf("catalog: area %q has unknown category %q", a.Name, a.Category)
		case len(a.Zones) == 0:
			return nil, eris.Errorf("catalog: area %q has no zones", a.Name)
		}
		if _, dup := c.index[key]; dup {
			return nil, eris.Errorf("catalog: duplicate area %q", a.Name)
		}
		c.index[key] = len(c.areas)
		c.areas = append(c.areas, a)
	}

	c.keywords = lo.Uniq(lo.FilterMap(interchangeKeywords, func(k string, _ int) (string, bool) {
		n := model.NormalizeName(k)
		return n, n != ""
	}))
	return c, nil
}

// Len returns the number of areas.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.areas)
}

// All returns the areas in catalog order.
func (c *Catalog) All() []model.CandidateArea {
	if c == nil {
		return nil
	}
	return slices.Clone(c.areas)
}

// Lookup finds an area by exact normalized name.
func (c *Catalog) Lookup(name string) (model.CandidateArea, bool) {
	if c == nil {
		return model.CandidateArea{}, false
	}
	i, ok := c.index[model.NormalizeName(name)]
	if !ok {
		return model.CandidateArea{}, false
	}
	return c.areas[i], true
}

// Match finds the catalog area for a stop name. An exact normalized match
// wins; otherwise the longest area key that contains, or is contained in, the
// name on word boundaries.
func (c *Catalog) Match(name string) (model.CandidateArea, bool) {
	if a, ok := c.Lookup(name); ok {
		return a, true
	}
	key := model.NormalizeName(name)
	if c == nil || len(key) < minContainmentKey {
		return model.CandidateArea{}, false
	}

	best, bestLen := -1, 0
	for i, a := range c.areas {
		ak := a.Key()
		if len(ak) < minContainmentKey {
			continue
		}
		if containsWords(key, ak) || containsWords(ak, key) {
			if n := min(len(ak), len(key)); n > bestLen {
				best, bestLen = i, n
			}
		}
	}
	if best < 0 {
		return model.CandidateArea{}, false
	}
	return c.areas[best], true
}

// Nearest returns up to k areas ordered by distance from p, ties broken by name.
func (c *Catalog) Nearest(p geo.Coordinate, k int) []model.CandidateArea {
	if c == nil || k <= 0 {
		return nil
	}
	out := slices.Clone(c.areas)
	slices.SortStableFunc(out, func(a, b model.CandidateArea) int {
		da := geo.HaversineMeters(p, a.Coordinate)
		db := geo.HaversineMeters(p, b.Coordinate)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return strings.Compare(a.Key(), b.Key())
	})
	return out[:min(k, len(out))]
}

// IsInterchange reports whether a stop name mentions a known interchange.
func (c *Catalog) IsInterchange(name string) bool {
	if c == nil {
		return false
	}
	key := model.NormalizeName(name)
	if a, ok := c.Match(name); ok && a.IsMajorHub() {
		return true
	}
	return lo.SomeBy(c.keywords, func(k string) bool { return containsWords(key, k) })
}

// containsWords reports whether needle appears in haystack as whole words.
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
