package heuristics

import (
	"github.com/rawblock/otc-engine/pkg/models"
)

// Heuristic Analyzer
//
// Combines the four independent per-transaction signals into a single
// 0-100 heuristic score. This is an internal diagnostic: the canonical
// score surfaced to callers comes from the scoring package, which weighs
// these signals against profiler, network, and known-entity evidence.
//
// Combined weights: size 0.35, behavior 0.25, timing 0.20, round 0.20.

const suspectedThreshold = 60

// Pattern tags appended when the corresponding indicator fires.
const (
	PatternSizeAnomaly  = "size_anomaly"
	PatternOTCBehavior  = "otc_behavior_profile"
	PatternOffHours     = "off_hours"
	PatternWeekend      = "weekend_activity"
	PatternRoundNumber  = "round_number"
)

// Result bundles every sub-analysis with the combined diagnostic score.
type Result struct {
	TxHash         string            `json:"txHash"`
	Size           SizeAnomalyResult `json:"size"`
	Behavior       BehaviorResult    `json:"behavior"`
	Timing         TimingResult      `json:"timing"`
	Round          RoundNumberResult `json:"round"`
	CombinedScore  float64           `json:"combinedScore"` // 0-100
	IsSuspectedOTC bool              `json:"isSuspectedOtc"`
	Patterns       []string          `json:"patterns,omitempty"`
}

// Config carries the tunable thresholds for the analyzer.
type Config struct {
	OTCFloorUSD  float64
	HighValueUSD float64
}

// DefaultConfig mirrors production thresholds.
func DefaultConfig() Config {
	return Config{
		OTCFloorUSD:  DefaultOTCFloorUSD,
		HighValueUSD: DefaultHighValueUSD,
	}
}

// Analyzer runs the four sub-analyses under one configuration.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer builds an analyzer; zero-valued config fields fall back to
// the defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.OTCFloorUSD <= 0 {
		cfg.OTCFloorUSD = DefaultOTCFloorUSD
	}
	if cfg.HighValueUSD <= 0 {
		cfg.HighValueUSD = DefaultHighValueUSD
	}
	return &Analyzer{cfg: cfg}
}

// Analyze runs all four signals over one transaction. historyUSD is the
// wallet's historical USD values for the statistical size read; profile
// may be nil when no behavioral history exists.
func (a *Analyzer) Analyze(tx models.TransactionRecord, profile *models.WalletProfile, historyUSD []float64) Result {
	result := Result{
		TxHash:   tx.Hash,
		Size:     AnalyzeTransferSize(tx.USD(), historyUSD, a.cfg.OTCFloorUSD, a.cfg.HighValueUSD),
		Behavior: AnalyzeBehavior(profile),
		Timing:   AnalyzeTiming(tx.Timestamp),
		Round:    AnalyzeRoundNumber(tx.USD()),
	}

	result.CombinedScore = result.Size.Score*0.35 +
		result.Behavior.Score*0.25 +
		result.Timing.Score*0.20 +
		result.Round.Score*0.20
	result.IsSuspectedOTC = result.CombinedScore >= suspectedThreshold

	if result.Size.IsAnomaly {
		result.Patterns = append(result.Patterns, PatternSizeAnomaly)
	}
	if result.Behavior.IsOTCProfile {
		result.Patterns = append(result.Patterns, PatternOTCBehavior)
	}
	if result.Timing.OffHours {
		result.Patterns = append(result.Patterns, PatternOffHours)
	}
	if result.Timing.Weekend {
		result.Patterns = append(result.Patterns, PatternWeekend)
	}
	if result.Round.IsRound {
		result.Patterns = append(result.Patterns, PatternRoundNumber)
	}
	return result
}
