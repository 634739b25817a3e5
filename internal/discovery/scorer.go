// Package discovery grades newly observed counterparty wallets for
// promotion into the known-entity set. A wallet surfaces when a tracked
// desk's flow touches it; the scorer decides whether it looks like
// another desk, a client, or noise.
//
// Four weighted axes sum to 100: interactions with already-known OTC
// desks, transfer volume, activity level, and counterparty network shape.
// The network axis is context-adjusted: a wallet talking to few
// counterparties is not penalized when its average transfer is large,
// since a small set of large counterparties is exactly what a desk's
// book looks like.
package discovery

import (
	"fmt"
	"math"
	"time"

	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/pkg/models"
)

const (
	maxOTCInteractionScore = 30
	maxVolumeScore         = 25
	maxActivityScore       = 25
	maxNetworkScore        = 20

	highAvgValueUSD = 250_000 // above this, concentration stops costing points
)

// Scorer grades wallets against the known-desk registry. A nil registry
// degrades to scoring without desk matches beyond the source desk.
type Scorer struct {
	desks registry.DeskRegistry
}

func NewScorer(desks registry.DeskRegistry) *Scorer {
	return &Scorer{desks: desks}
}

// ScoreWallet grades one discovered wallet. txs is the wallet's history
// in both directions; sourceDesk is the known desk whose flow surfaced
// the wallet and always counts as one OTC interaction.
func (s *Scorer) ScoreWallet(address string, txs []models.TransactionRecord, profile *models.WalletProfile, sourceDesk string) (*models.DiscoveryScore, error) {
	if address == "" {
		return nil, fmt.Errorf("score wallet: %w: address is required", models.ErrInvalidInput)
	}

	counterparties := counterpartyCounts(address, txs, profile)
	knownOTC := s.countKnownOTC(counterparties, sourceDesk)
	totalUSD, totalToken := volumes(txs)

	score := &models.DiscoveryScore{
		Address:                address,
		SourceDesk:             sourceDesk,
		ScoredAt:               time.Now().UTC(),
		KnownOTCCounterparties: knownOTC,
		TotalVolumeUSD:         totalUSD,
	}

	score.OTCInteractionScore = otcInteractionScore(knownOTC)
	score.VolumeScore = volumeScore(totalUSD, totalToken)
	score.ActivityScore = activityScore(len(txs), len(counterparties))
	score.NetworkScore = networkScore(counterparties, totalUSD, len(txs))

	score.TotalScore = score.OTCInteractionScore + score.VolumeScore + score.ActivityScore + score.NetworkScore
	score.Recommendation = models.RecommendationForScore(score.TotalScore)
	return score, nil
}

// counterpartyCounts prefers the profile's counterparty distribution and
// falls back to deriving one from the raw history.
func counterpartyCounts(address string, txs []models.TransactionRecord, profile *models.WalletProfile) map[string]int {
	if profile != nil && len(profile.CounterpartyTxCounts) > 0 {
		return profile.CounterpartyTxCounts
	}
	counts := make(map[string]int)
	for _, tx := range txs {
		other := tx.ToAddress
		if tx.ToAddress == address {
			other = tx.FromAddress
		}
		if other != "" && other != address {
			counts[other]++
		}
	}
	return counts
}

func (s *Scorer) countKnownOTC(counterparties map[string]int, sourceDesk string) int {
	known := 0
	sourceSeen := false
	for addr := range counterparties {
		if addr == sourceDesk {
			sourceSeen = true
			known++
			continue
		}
		if s.desks != nil && s.desks.IsKnownOTCDesk(addr) {
			known++
		}
	}
	// The discovering desk counts even when its transfers fell outside
	// the fetched history window.
	if !sourceSeen && sourceDesk != "" {
		known++
	}
	return known
}

func otcInteractionScore(knownOTC int) float64 {
	switch {
	case knownOTC >= 5:
		return maxOTCInteractionScore
	case knownOTC >= 3:
		return 24
	case knownOTC >= 2:
		return 18
	case knownOTC >= 1:
		return 12
	default:
		return 0
	}
}

// volumeScore tiers by USD when enrichment is present, else by raw token
// amount.
func volumeScore(totalUSD, totalToken float64) float64 {
	if totalUSD > 0 {
		switch {
		case totalUSD >= 10_000_000:
			return maxVolumeScore
		case totalUSD >= 1_000_000:
			return 20
		case totalUSD >= 500_000:
			return 15
		case totalUSD >= 100_000:
			return 10
		case totalUSD >= 10_000:
			return 5
		default:
			return 0
		}
	}
	switch {
	case totalToken >= 10_000:
		return maxVolumeScore
	case totalToken >= 1_000:
		return 18
	case totalToken >= 100:
		return 10
	case totalToken >= 10:
		return 5
	default:
		return 0
	}
}

// activityScore is a transaction-count tier (0-15) plus a
// counterparty-count tier (0-10).
func activityScore(txCount, counterpartyCount int) float64 {
	var txScore float64
	switch {
	case txCount >= 500:
		txScore = 15
	case txCount >= 100:
		txScore = 12
	case txCount >= 20:
		txScore = 8
	case txCount >= 5:
		txScore = 4
	}

	var cpScore float64
	switch {
	case counterpartyCount >= 50:
		cpScore = 10
	case counterpartyCount >= 20:
		cpScore = 8
	case counterpartyCount >= 5:
		cpScore = 5
	case counterpartyCount >= 2:
		cpScore = 2
	}
	return txScore + cpScore
}

// networkScore grades counterparty-network shape: an entropy term (0-14)
// plus a breadth bonus (0-6). Low entropy normally reads as a personal
// wallet, but when the average transfer is large it reads as a desk book
// and earns the full entropy term.
func networkScore(counterparties map[string]int, totalUSD float64, txCount int) float64 {
	if len(counterparties) == 0 {
		return 0
	}

	avgUSD := 0.0
	if txCount > 0 {
		avgUSD = totalUSD / float64(txCount)
	}

	entropy := shannonEntropy(counterparties)
	var entropyScore float64
	switch {
	case entropy >= 3:
		entropyScore = 14
	case entropy >= 2:
		entropyScore = 10
	case entropy >= 1:
		entropyScore = 6
	default:
		entropyScore = 2
	}
	if avgUSD >= highAvgValueUSD && entropyScore < 14 {
		entropyScore = 14
	}

	var breadthBonus float64
	switch {
	case len(counterparties) >= 20:
		breadthBonus = 6
	case len(counterparties) >= 10:
		breadthBonus = 4
	case len(counterparties) >= 3:
		breadthBonus = 2
	}

	score := entropyScore + breadthBonus
	if score > maxNetworkScore {
		score = maxNetworkScore
	}
	return score
}

func volumes(txs []models.TransactionRecord) (usd, token float64) {
	for _, tx := range txs {
		usd += tx.USD()
		token += tx.TokenAmount
	}
	return usd, token
}

func shannonEntropy(counts map[string]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
