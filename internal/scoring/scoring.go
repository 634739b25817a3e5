package scoring

import (
	"math"

	"github.com/rawblock/otc-engine/internal/heuristics"
	"github.com/rawblock/otc-engine/internal/network"
	"github.com/rawblock/otc-engine/pkg/models"
)

// Confidence Scoring System
//
// Produces the canonical 0-100 detection score from five weighted
// components. The weights are fixed and sum to 1.0:
//
//   transfer size     0.30   sigmoid over USD value
//   wallet profile    0.25   behavioral composite
//   network position  0.20   centrality composite
//   timing            0.15   off-hours/weekend
//   known entity      0.10   registry label confidence
//
// The heuristic analyzer's combined score is a diagnostic; this is the
// number surfaced to callers and persisted with the detection.

// Component weights.
const (
	WeightTransferSize    = 0.30
	WeightWalletProfile   = 0.25
	WeightNetworkPosition = 0.20
	WeightTiming          = 0.15
	WeightKnownEntity     = 0.10
)

// Sigmoid parameters for the transfer-size component.
const (
	sizeMidpointUSD  = 500_000
	sizeSteepness    = 2e-6
)

// EntityMatch describes a known-entity lookup outcome for one endpoint.
type EntityMatch struct {
	IsOTCDesk  bool
	Confidence float64 // registry confidence, 0-1
}

// Input gathers everything the scorer needs for one transaction.
type Input struct {
	Tx           models.TransactionRecord
	Profile      *models.WalletProfile  // sender profile, may be nil
	Network      *models.NetworkMetrics // sender centrality, may be nil
	Timing       heuristics.TimingResult
	FromEntity   EntityMatch
	ToEntity     EntityMatch
}

// Score computes the weighted total and its component breakdown.
func Score(in Input) (float64, models.ComponentScores) {
	components := models.ComponentScores{
		TransferSize:    TransferSizeScore(in.Tx.USD()),
		WalletProfile:   WalletProfileScore(in.Profile),
		NetworkPosition: networkComponent(in.Network),
		Timing:          in.Timing.Score,
		KnownEntity:     KnownEntityScore(in.FromEntity, in.ToEntity),
	}

	total := components.TransferSize*WeightTransferSize +
		components.WalletProfile*WeightWalletProfile +
		components.NetworkPosition*WeightNetworkPosition +
		components.Timing*WeightTiming +
		components.KnownEntity*WeightKnownEntity

	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total, components
}

// TransferSizeScore maps a USD value through a sigmoid centered at $500k:
// a $100k transfer scores ~31, $500k scores 50, $5M scores ~100.
func TransferSizeScore(valueUSD float64) float64 {
	return 100 / (1 + math.Exp(-sizeSteepness*(valueUSD-sizeMidpointUSD)))
}

// WalletProfileScore composes the behavioral component from the sender's
// profile, capped at 100:
//
//   inverse frequency    0-25  linear decay up to 10 tx/day
//   average value tiers  0-30  $1M/$500k/$100k
//   DeFi absence         0-25  partial credit when only DEX is absent
//   inverse entropy      0-20  concentrated counterparty sets score high
func WalletProfileScore(p *models.WalletProfile) float64 {
	if p == nil {
		return 0
	}

	score := 0.0

	// Inverse frequency: desks transact rarely
	freqTerm := 1 - p.TxPerDay/10
	if freqTerm < 0 {
		freqTerm = 0
	}
	score += freqTerm * 25

	switch {
	case p.AvgTxUSD >= 1_000_000:
		score += 30
	case p.AvgTxUSD >= 500_000:
		score += 20
	case p.AvgTxUSD >= 100_000:
		score += 10
	}

	switch {
	case !p.HasDeFiInteractions && !p.HasDexSwaps:
		score += 25
	case !p.HasDexSwaps:
		score += 12.5
	}

	// Inverse entropy: a desk's flow concentrates in few counterparties
	entropyTerm := 1 - p.CounterpartyEntropy/4
	if entropyTerm < 0 {
		entropyTerm = 0
	}
	score += entropyTerm * 20

	if score > 100 {
		score = 100
	}
	return score
}

// networkComponent delegates to the network position score, treating an
// absent snapshot as a neutral zero.
func networkComponent(m *models.NetworkMetrics) float64 {
	if m == nil {
		return 0
	}
	return network.PositionScore(*m)
}

// KnownEntityScore returns 100x the registry confidence when either
// endpoint is a labeled OTC desk, taking the stronger match when both are.
func KnownEntityScore(from, to EntityMatch) float64 {
	score := 0.0
	if from.IsOTCDesk {
		score = from.Confidence * 100
	}
	if to.IsOTCDesk && to.Confidence*100 > score {
		score = to.Confidence * 100
	}
	return score
}
