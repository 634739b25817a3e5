package models

import "time"

// WalletProfile is the behavioral fingerprint of a single address, built
// from its full transaction history (both directions). Profiles are derived
// per detection/clustering run and never persisted by the engine itself.
type WalletProfile struct {
	Address string `json:"address"`

	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	TxCount   int       `json:"txCount"`
	TxPerDay  float64   `json:"txPerDay"` // transaction frequency

	TotalVolumeUSD  float64 `json:"totalVolumeUsd"`
	AvgTxUSD        float64 `json:"avgTxUsd"`
	MedianTxUSD     float64 `json:"medianTxUsd"`

	HasDeFiInteractions    bool `json:"hasDefiInteractions"`
	HasDexSwaps            bool `json:"hasDexSwaps"`
	HasContractDeployments bool `json:"hasContractDeployments"`

	UniqueCounterparties int                `json:"uniqueCounterparties"`
	CounterpartyEntropy  float64            `json:"counterpartyEntropy"` // Shannon entropy over counterparty distribution
	CounterpartyTxCounts map[string]int     `json:"-"`                   // distribution backing the entropy figure

	ActiveHours          map[int]bool `json:"-"` // UTC hours 0-23 with activity
	ActiveDays           map[int]bool `json:"-"` // weekdays 0=Sunday .. 6=Saturday
	WeekendActivityRatio float64      `json:"weekendActivityRatio"`

	// ConfidenceScore scales with sample size: >=100 txs gives 1.0,
	// fewer than 10 floors at 0.3.
	ConfidenceScore float64 `json:"confidenceScore"`
	OTCProbability  float64 `json:"otcProbability"` // 0.0 - 1.0
}

// ActiveHourSlice returns the active hours in ascending order, for
// JSON output and Jaccard comparisons that want a stable ordering.
func (p *WalletProfile) ActiveHourSlice() []int {
	var hours []int
	for h := 0; h < 24; h++ {
		if p.ActiveHours[h] {
			hours = append(hours, h)
		}
	}
	return hours
}
