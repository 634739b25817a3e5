package heuristics

import (
	"time"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Transaction Timing Heuristic
//
// OTC settlement is negotiated privately and frequently lands outside
// exchange prime hours: overnight UTC and weekends. Two flat 50-point
// indicators, capped at 100.

// TimingResult holds the timing sub-analysis.
type TimingResult struct {
	Score    float64 `json:"score"` // 0-100
	OffHours bool    `json:"offHours"`
	Weekend  bool    `json:"weekend"`
	HourUTC  int     `json:"hourUtc"`
	Weekday  int     `json:"weekday"` // 0=Sunday .. 6=Saturday
}

// AnalyzeTiming scores a timestamp: off-hours is 22:00-06:00 UTC,
// weekend is Saturday or Sunday UTC.
func AnalyzeTiming(ts time.Time) TimingResult {
	utc := ts.UTC()
	result := TimingResult{
		HourUTC: utc.Hour(),
		Weekday: int(utc.Weekday()),
	}

	if result.HourUTC >= 22 || result.HourUTC < 6 {
		result.OffHours = true
		result.Score += 50
	}
	if utc.Weekday() == time.Saturday || utc.Weekday() == time.Sunday {
		result.Weekend = true
		result.Score += 50
	}
	if result.Score > 100 {
		result.Score = 100
	}
	return result
}

// Snapshot converts the result into the persisted timing snapshot shape.
func (r TimingResult) Snapshot() *models.TimingSnapshot {
	return &models.TimingSnapshot{
		HourUTC:    r.HourUTC,
		WeekdayUTC: r.Weekday,
		OffHours:   r.OffHours,
		Weekend:    r.Weekend,
	}
}
