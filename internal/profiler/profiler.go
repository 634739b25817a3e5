package profiler

import (
	"math"
	"sort"
	"time"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Wallet Behavioral Profiler
//
// Builds a WalletProfile from an address's full transaction history, both
// directions. The profile captures what the address does (volume, cadence,
// DeFi footprint) and who it talks to (counterparty spread, Shannon
// entropy), feeding the behavior heuristic, similarity clustering, and the
// standalone OTC-probability estimate.
//
// Profiles carry their own confidence: metrics computed from 8 transfers
// mean far less than the same metrics over 800. Confidence scales with
// sample size, flooring at 0.3 under 10 transactions and saturating at 1.0
// from 100.

// minProfileTxs is the sample floor below which only a minimal profile
// (identity plus confidence floor) is emitted.
const minProfileTxs = 5

// Labeler is the wallet-labeling collaborator port. Implementations must
// return an EntityType of "unknown" for absent entries rather than erroring.
type Labeler interface {
	LookupLabel(address string) models.EntityLabel
}

// BuildProfile derives the behavioral profile for one address from its
// transaction list. labeler may be nil; DeFi/DEX flags then rely solely on
// record shape.
func BuildProfile(address string, txs []models.TransactionRecord, labeler Labeler) *models.WalletProfile {
	profile := &models.WalletProfile{
		Address:              address,
		TxCount:              len(txs),
		CounterpartyTxCounts: make(map[string]int),
		ActiveHours:          make(map[int]bool),
		ActiveDays:           make(map[int]bool),
	}

	if len(txs) < minProfileTxs {
		profile.ConfidenceScore = 0.3
		profile.OTCProbability = CalculateOTCProbability(profile, labeler)
		return profile
	}

	var values []float64
	var total float64
	weekendTxs := 0

	profile.FirstSeen = txs[0].Timestamp
	profile.LastSeen = txs[0].Timestamp

	for _, tx := range txs {
		if tx.Timestamp.Before(profile.FirstSeen) {
			profile.FirstSeen = tx.Timestamp
		}
		if tx.Timestamp.After(profile.LastSeen) {
			profile.LastSeen = tx.Timestamp
		}

		v := tx.USD()
		values = append(values, v)
		total += v

		utc := tx.Timestamp.UTC()
		profile.ActiveHours[utc.Hour()] = true
		profile.ActiveDays[int(utc.Weekday())] = true
		if utc.Weekday() == time.Saturday || utc.Weekday() == time.Sunday {
			weekendTxs++
		}

		counterparty := tx.ToAddress
		if tx.ToAddress == address {
			counterparty = tx.FromAddress
		}
		if counterparty == "" {
			// Contract deployment: no recipient
			profile.HasContractDeployments = true
			continue
		}
		if counterparty != address {
			profile.CounterpartyTxCounts[counterparty]++
		}

		if tx.ContractInteraction {
			classifyInteraction(profile, counterparty, labeler)
		}
	}

	profile.TotalVolumeUSD = total
	profile.AvgTxUSD = total / float64(len(txs))
	profile.MedianTxUSD = median(values)
	profile.WeekendActivityRatio = float64(weekendTxs) / float64(len(txs))

	activeDays := profile.LastSeen.Sub(profile.FirstSeen).Hours() / 24
	if activeDays < 1 {
		activeDays = 1
	}
	profile.TxPerDay = float64(len(txs)) / activeDays

	profile.UniqueCounterparties = len(profile.CounterpartyTxCounts)
	profile.CounterpartyEntropy = shannonEntropy(profile.CounterpartyTxCounts)

	profile.ConfidenceScore = confidenceForSample(len(txs))
	profile.OTCProbability = CalculateOTCProbability(profile, labeler)
	return profile
}

// classifyInteraction sets the DeFi/DEX flags from the counterparty's
// label. A contract interaction with an unlabeled counterparty is treated
// as a plain token transfer, not DeFi usage: on EVM chains every ERC-20
// movement is a contract call, and counting those would flag every wallet.
func classifyInteraction(profile *models.WalletProfile, counterparty string, labeler Labeler) {
	if labeler == nil {
		return
	}
	switch labeler.LookupLabel(counterparty).EntityType {
	case "dex":
		profile.HasDexSwaps = true
		profile.HasDeFiInteractions = true
	case "defi", "lending", "bridge", "yield":
		profile.HasDeFiInteractions = true
	}
}

// confidenceForSample maps a transaction count onto profile confidence:
// clamp(count/100, 0.3, 1.0).
func confidenceForSample(count int) float64 {
	c := float64(count) / 100
	if c < 0.3 {
		return 0.3
	}
	if c > 1 {
		return 1
	}
	return c
}

// median returns the middle value; even-length inputs average the pair.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// shannonEntropy computes the entropy (bits) of the counterparty
// transaction distribution. Zero when the wallet speaks to at most one
// counterparty.
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
