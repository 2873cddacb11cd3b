// Package scorer turns analyzed meeting-point candidates into comparable
// convenience scores.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/commonplace/internal/config"
)

// CanonicalVersion names the scoring configuration returned by DefaultConfig.
const CanonicalVersion = "2"

// DefaultConfig returns the canonical scoring configuration. Weights sum to 1.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Version: CanonicalVersion,

		// Weights (sum = 1).
		SpeedWeight:       0.45,
		FairnessWeight:    0.25,
		ConvenienceWeight: 0.20,
		PrestigeWeight:    0.10,

		// Sub-score shapes.
		SoftMinutes:    20,
		CeilingMinutes: 75,
		SpeedExponent:  1.6,
		MaxGapMinutes:  20,
		MaxChanges:     4,

		// Bonuses.
		HubBonus:         60,
		Zone1Bonus:       40,
		DirectBonus:      10,
		DirectRefMinutes: 25,
	}
}

// WeightSum returns the sum of the four sub-score weights.
func WeightSum(c config.ScoringConfig) float64 {
	return c.SpeedWeight + c.FairnessWeight + c.ConvenienceWeight + c.PrestigeWeight
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	if c.Version == "" {
		errs = append(errs, "version is required")
	}

	weights := map[string]float64{
		"speed_weight":       c.SpeedWeight,
		"fairness_weight":    c.FairnessWeight,
		"convenience_weight": c.ConvenienceWeight,
		"prestige_weight":    c.PrestigeWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if sum := WeightSum(c); math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.3f", sum))
	}

	if c.SoftMinutes <= 0 {
		errs = append(errs, "soft_minutes must be > 0")
	}
	if c.CeilingMinutes <= c.SoftMinutes {
		errs = append(errs, "ceiling_minutes must be > soft_minutes")
	}
	if c.SpeedExponent < 1 {
		errs = append(errs, "speed_exponent must be >= 1")
	}
	if c.MaxGapMinutes <= 0 {
		errs = append(errs, "max_gap_minutes must be > 0")
	}
	if c.MaxChanges <= 0 {
		errs = append(errs, "max_changes must be > 0")
	}
	if c.HubBonus < 0 || c.Zone1Bonus < 0 || c.DirectBonus < 0 {
		errs = append(errs, "bonuses must be >= 0")
	}
	if c.DirectBonus > 0 && c.DirectRefMinutes <= 0 {
		errs = append(errs, "direct_ref_minutes must be > 0 when direct_bonus is set")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
