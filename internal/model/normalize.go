package model

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stationSuffixes are the trailing qualifiers the journey planner appends to
// stop names. Longer suffixes come first so "rail station" wins over "station".
var stationSuffixes = []string{
	" underground station",
	" overground station",
	" elizabeth line station",
	" rail station",
	" dlr station",
	" tube station",
	" bus station",
	" tram stop",
	" station",
}

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	multiSpaceRe    = regexp.MustCompile(`\s+`)
	punctuation     = strings.NewReplacer(
		"&", " and ",
		"'", "",
		"’", "",
		".", " ",
		",", " ",
		"-", " ",
		"/", " ",
	)
)

// NormalizeName reduces an area or stop name to its matching key:
//  1. Removing diacritics and folding case
//  2. Dropping parenthesised qualifiers such as "(London)"
//  3. Replacing punctuation ("&" becomes "and", apostrophes vanish)
//  4. Removing station suffixes ("Underground Station", "Rail Station")
//  5. Collapsing whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, name); err == nil {
		name = stripped
	}
	name = cases.Fold().String(name)

	name = parentheticalRe.ReplaceAllString(name, " ")
	name = punctuation.Replace(name)
	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	for trimmed := true; trimmed; {
		trimmed = false
		for _, suffix := range stationSuffixes {
			if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
				trimmed = true
				break
			}
		}
	}

	return name
}
