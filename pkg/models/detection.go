package models

import "time"

// Classification bands for the final 0-100 detection score.
const (
	ClassificationHighConfidence = "high_confidence" // score >= 80
	ClassificationMedium         = "medium"          // score >= 60
	ClassificationLow            = "low"             // score >= 40
	ClassificationNotOTC         = "not_otc"         // score < 40
)

// ClassifyScore maps a total score onto its classification band.
func ClassifyScore(score float64) string {
	switch {
	case score >= 80:
		return ClassificationHighConfidence
	case score >= 60:
		return ClassificationMedium
	case score >= 40:
		return ClassificationLow
	default:
		return ClassificationNotOTC
	}
}

// ComponentScores decomposes the final detection score into the five
// weighted signals. Each component is on a 0-100 scale before weighting.
type ComponentScores struct {
	TransferSize    float64 `json:"transferSize"`    // weight 0.30
	WalletProfile   float64 `json:"walletProfile"`   // weight 0.25
	NetworkPosition float64 `json:"networkPosition"` // weight 0.20
	Timing          float64 `json:"timing"`          // weight 0.15
	KnownEntity     float64 `json:"knownEntity"`     // weight 0.10
}

// NetworkMetrics is the per-address centrality snapshot used for scoring.
type NetworkMetrics struct {
	Address               string  `json:"address"`
	BetweennessCentrality float64 `json:"betweennessCentrality"` // normalized 0-1
	DegreeCentrality      float64 `json:"degreeCentrality"`      // normalized 0-1
	ClusteringCoefficient float64 `json:"clusteringCoefficient"` // undirected projection
	InDegree              int     `json:"inDegree"`
	OutDegree             int     `json:"outDegree"`
	IsHub                 bool    `json:"isHub"`
	HubScore              float64 `json:"hubScore"`
}

// TimingSnapshot records the temporal facts the score was computed from.
type TimingSnapshot struct {
	HourUTC    int  `json:"hourUtc"`
	WeekdayUTC int  `json:"weekdayUtc"` // 0=Sunday .. 6=Saturday
	OffHours   bool `json:"offHours"`   // 22:00-06:00 UTC
	Weekend    bool `json:"weekend"`
}

// DetectionResult is the engine's verdict for a single transaction.
// The pipeline always produces one, even when every signal is at its floor.
type DetectionResult struct {
	TxHash              string          `json:"txHash"`
	TotalScore          float64         `json:"totalScore"` // 0-100
	Classification      string          `json:"classification"`
	ComponentScores     ComponentScores `json:"componentScores"`
	MatchedPatterns     []string        `json:"matchedPatterns,omitempty"`
	InvolvesKnownEntity bool            `json:"involvesKnownEntity"`
	NetworkMetrics      *NetworkMetrics `json:"networkMetrics,omitempty"`
	Timing              *TimingSnapshot `json:"timing,omitempty"`
	AnalyzedAt          time.Time       `json:"analyzedAt"`
}

// RangeSummary aggregates a ScanRange pass over a raw transaction set.
type RangeSummary struct {
	TotalTransactions  int                 `json:"totalTransactions"`
	AnalyzedCount      int                 `json:"analyzedCount"` // at or above the minimum USD filter
	SuspectedCount     int                 `json:"suspectedCount"`
	SuspectedVolumeUSD float64             `json:"suspectedVolumeUsd"`
	ByClassification   map[string]int      `json:"byClassification"` // confidence-level histogram
	ActiveClusters     map[string][]string `json:"activeClusters"`   // address -> suspected tx hashes (>= 2)
	Results            []DetectionResult   `json:"results"`
}
