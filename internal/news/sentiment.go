package news

import (
	"math"
	"strings"
)

// Fixed keyword sets for the naive sentiment heuristic. Intentionally
// simple and deterministic; there is no external sentiment model.
var (
	positiveWords = []string{"growth", "beat", "win", "strong"}
	negativeWords = []string{"risk", "concern", "loss", "slow"}
)

// Score computes naive sentiment for a piece of text: occurrence counts of
// the positive and negative word sets, case-insensitive, scored as
// (positive-negative)/(positive+negative) rounded to two decimals. Equal
// or zero counts score 0.0.
func Score(text string) float64 {
	lower := strings.ToLower(text)

	var positive, negative int
	for _, w := range positiveWords {
		positive += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		negative += strings.Count(lower, w)
	}

	if positive == negative {
		return 0.0
	}
	return round2(float64(positive-negative) / float64(positive+negative))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
