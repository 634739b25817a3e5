package heuristics

import (
	"github.com/rawblock/otc-engine/pkg/models"
)

// Wallet Behavior Heuristic
//
// OTC participants transact rarely, in size, and without touching DeFi
// rails: a desk settles bilaterally and has no reason to route through a
// DEX. Three indicators on a 100-point budget:
//
//   - low frequency  (< 1 tx per 3 days)            25
//   - high average   (> $50k per transfer)          25
//   - no DeFi footprint (neither DeFi nor DEX)      50, 25 when only DEX absent
//
// The original formulation counted "no DeFi" twice in separate 25-point
// indicators; the collapsed 50-point indicator with partial credit is
// point-for-point equivalent on every input.

const (
	lowFrequencyPerDay = 0.33
	highAvgUSD         = 50_000
)

// BehaviorResult holds the wallet-behavior sub-analysis.
type BehaviorResult struct {
	Score        float64 `json:"score"` // 0-100
	IsOTCProfile bool    `json:"isOtcProfile"`
	LowFrequency bool    `json:"lowFrequency"`
	HighAverage  bool    `json:"highAverage"`
	NoDeFi       bool    `json:"noDefi"` // neither DeFi nor DEX activity
}

// AnalyzeBehavior scores a wallet profile against the OTC behavioral
// template. A nil profile scores zero.
func AnalyzeBehavior(profile *models.WalletProfile) BehaviorResult {
	var result BehaviorResult
	if profile == nil {
		return result
	}

	if profile.TxPerDay < lowFrequencyPerDay {
		result.LowFrequency = true
		result.Score += 25
	}
	if profile.AvgTxUSD > highAvgUSD {
		result.HighAverage = true
		result.Score += 25
	}

	switch {
	case !profile.HasDeFiInteractions && !profile.HasDexSwaps:
		result.NoDeFi = true
		result.Score += 50
	case !profile.HasDeFiInteractions:
		// DEX activity present but no broader DeFi: half credit
		result.Score += 25
	}

	result.IsOTCProfile = result.Score >= 50
	return result
}
