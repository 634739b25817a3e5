package profiler

import (
	"strings"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Standalone OTC-Probability Estimate
//
// A 100-point heuristic over the profile alone: no graph or per-transaction
// signals. It answers "does this wallet on its own look like a desk", which
// the clustering and discovery paths use when no specific transaction is
// under review.
//
// Budget:
//   entity label          0-50  (registry label, name-pattern bonus)
//   volume metrics        0-30  (total volume and average size tiers)
//   transaction pattern   0-20  (cadence, history depth, DeFi absence)
//   network shape         0-10  (counterparty count and entropy tiers)
//
// The normalized result is discounted by the profile's own confidence, so
// a thin 6-transaction history can never claim a strong probability.

// wellKnownDeskPatterns earn the name bonus in the label component.
var wellKnownDeskPatterns = []string{
	"cumberland", "wintermute", "galaxy", "genesis", "b2c2",
	"jump", "falconx", "flowtraders", "gsr", "dv chain",
}

// CalculateOTCProbability estimates, in [0,1], how desk-like a profile is.
// labeler may be nil; the label component then contributes nothing.
func CalculateOTCProbability(profile *models.WalletProfile, labeler Labeler) float64 {
	if profile == nil {
		return 0
	}

	score := labelScore(profile.Address, labeler) +
		volumeScore(profile) +
		patternScore(profile) +
		networkScore(profile)

	if score > 100 {
		score = 100
	}
	return score / 100 * profile.ConfidenceScore
}

// labelScore awards up to 50 points from the registry label, with a
// 10-point bonus when the entity name matches a well-known desk.
func labelScore(address string, labeler Labeler) float64 {
	if labeler == nil {
		return 0
	}
	label := labeler.LookupLabel(address)

	score := 0.0
	switch label.EntityType {
	case "otc_desk":
		score = 40
	case "market_maker", "institutional":
		score = 25
	default:
		for _, l := range label.Labels {
			if strings.Contains(strings.ToLower(l), "otc") {
				score = 30
				break
			}
		}
	}

	if score > 0 {
		name := strings.ToLower(label.EntityName)
		for _, pattern := range wellKnownDeskPatterns {
			if strings.Contains(name, pattern) {
				score += 10
				break
			}
		}
	}
	if score > 50 {
		score = 50
	}
	return score
}

// volumeScore awards up to 30 points across total-volume and average-size
// tiers.
func volumeScore(p *models.WalletProfile) float64 {
	score := 0.0
	switch {
	case p.TotalVolumeUSD >= 100_000_000:
		score += 15
	case p.TotalVolumeUSD >= 10_000_000:
		score += 10
	case p.TotalVolumeUSD >= 1_000_000:
		score += 5
	}
	switch {
	case p.AvgTxUSD >= 1_000_000:
		score += 15
	case p.AvgTxUSD >= 250_000:
		score += 10
	case p.AvgTxUSD >= 50_000:
		score += 5
	}
	return score
}

// patternScore awards up to 20 points for desk-like cadence: infrequent,
// long-lived, DeFi-free.
func patternScore(p *models.WalletProfile) float64 {
	score := 0.0
	if p.TxPerDay > 0 && p.TxPerDay < 0.33 {
		score += 8
	}
	if p.TxCount >= 100 {
		score += 6
	}
	if !p.HasDeFiInteractions && !p.HasDexSwaps {
		score += 6
	}
	if score > 20 {
		score = 20
	}
	return score
}

// networkScore awards up to 10 points for a broad but uneven counterparty
// set: desks talk to many clients, dominated by a few large ones.
func networkScore(p *models.WalletProfile) float64 {
	score := 0.0
	switch {
	case p.UniqueCounterparties >= 50:
		score += 5
	case p.UniqueCounterparties >= 10:
		score += 3
	case p.UniqueCounterparties >= 3:
		score += 1
	}
	switch {
	case p.CounterpartyEntropy >= 3:
		score += 5
	case p.CounterpartyEntropy >= 1.5:
		score += 3
	}
	return score
}
