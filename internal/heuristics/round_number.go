package heuristics

import "math"

// Round Number Detection
//
// OTC trades are negotiated by humans in round USD sizes: "$5 million of
// ETH", not $4,973,212.18. The detector walks a descending threshold
// ladder and flags a value that sits within 1% of a ladder level or of an
// integer multiple of it. Larger rounds score higher because fewer actors
// move eight figures at a time.

const roundTolerance = 0.01

// roundLevel pairs a ladder threshold with its label and score.
type roundLevel struct {
	threshold float64
	name      string
	score     float64
}

// Descending ladder: a value matches the largest level it rounds to.
var roundLadder = []roundLevel{
	{10_000_000, "ten_million", 100},
	{5_000_000, "five_million", 90},
	{1_000_000, "million", 80},
	{500_000, "half_million", 70},
	{100_000, "hundred_k", 60},
}

// RoundNumberResult holds the round-number sub-analysis.
type RoundNumberResult struct {
	Score   float64 `json:"score"` // 0-100
	IsRound bool    `json:"isRound"`
	Level   string  `json:"level,omitempty"` // matched ladder level
}

// AnalyzeRoundNumber checks a USD value against the round-number ladder.
func AnalyzeRoundNumber(valueUSD float64) RoundNumberResult {
	var result RoundNumberResult
	if valueUSD <= 0 {
		return result
	}

	for _, level := range roundLadder {
		if withinTolerance(valueUSD, level.threshold) || nearMultiple(valueUSD, level.threshold) {
			result.IsRound = true
			result.Level = level.name
			result.Score = level.score
			return result
		}
	}
	return result
}

// withinTolerance reports whether value is within 1% of the threshold itself.
func withinTolerance(value, threshold float64) bool {
	return math.Abs(value-threshold) <= threshold*roundTolerance
}

// nearMultiple reports whether value is within 1% of an integer multiple
// of the threshold (at least 1x).
func nearMultiple(value, threshold float64) bool {
	m := math.Round(value / threshold)
	if m < 1 {
		return false
	}
	target := m * threshold
	return math.Abs(value-target) <= target*roundTolerance
}
