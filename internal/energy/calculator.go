// Package energy estimates calorie expenditure from activity metadata and
// classifies the balance between calories gained and burned. All functions are
// pure and deterministic.
package energy

import (
	"math"
	"strings"
)

// DefaultBodyWeightKG applies when the user profile carries no weight.
const DefaultBodyWeightKG = 70

// metFactors maps a lowercase activity label to its metabolic-equivalent
// factor. Labels outside this table estimate to zero, which is the deliberate
// "unknown activity" policy rather than an error.
var metFactors = map[string]float64{
	"running":       9.8,
	"walking":       3.8,
	"cycling":       8.0,
	"swimming":      7.0,
	"yoga":          2.5,
	"weightlifting": 3.0,
}

// Balance classifies an energy balance.
type Balance string

const (
	// BalanceFavorable means calories gained did not exceed calories burned.
	BalanceFavorable Balance = "favorable"
	// BalanceNeedsMoreActivity means the user gained more than they burned.
	BalanceNeedsMoreActivity Balance = "needs_more_activity"
)

// Summary is the derived energy-balance message emitted after a save. It is
// never persisted.
type Summary struct {
	Gained  float64 `json:"calories_gained"`
	Burned  int     `json:"calories_burned"`
	Delta   float64 `json:"delta"`
	Balance Balance `json:"balance"`
}

// EstimateBurn returns the estimated calories burned for an activity label,
// matched case-insensitively against the MET table. Non-positive durations
// and weights estimate to zero.
func EstimateBurn(activity string, durationMinutes int, bodyWeightKG float64) int {
	if durationMinutes <= 0 || bodyWeightKG <= 0 {
		return 0
	}
	met := metFactors[strings.ToLower(strings.TrimSpace(activity))]
	return int(math.Round(met * bodyWeightKG * float64(durationMinutes) / 60))
}

// Classify reports whether an energy balance is favorable. Equal gained and
// burned values classify as needing more activity.
func Classify(gained float64, burned int) Balance {
	if gained-float64(burned) < 0 {
		return BalanceFavorable
	}
	return BalanceNeedsMoreActivity
}

// Summarize packages the gained/burned pair with its classification.
func Summarize(gained float64, burned int) Summary {
	return Summary{
		Gained:  gained,
		Burned:  burned,
		Delta:   gained - float64(burned),
		Balance: Classify(gained, burned),
	}
}
