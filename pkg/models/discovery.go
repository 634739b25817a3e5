package models

import "time"

// Discovery recommendation bands.
const (
	RecommendationAutoSave    = "AUTO_SAVE"          // score >= 70
	RecommendationLikelyOTC   = "LIKELY_OTC"         // score >= 55
	RecommendationReview      = "REVIEW_RECOMMENDED" // score >= 40
	RecommendationInteresting = "INTERESTING_FLAG"   // score >= 30
	RecommendationUnlikely    = "UNLIKELY_OTC"       // below 30
)

// RecommendationForScore maps a discovery score onto its action band.
func RecommendationForScore(score float64) string {
	switch {
	case score >= 70:
		return RecommendationAutoSave
	case score >= 55:
		return RecommendationLikelyOTC
	case score >= 40:
		return RecommendationReview
	case score >= 30:
		return RecommendationInteresting
	default:
		return RecommendationUnlikely
	}
}

// DiscoveryScore grades a newly observed counterparty wallet for promotion
// into the known-entity set. The four axes sum to 100.
type DiscoveryScore struct {
	Address        string    `json:"address"`
	SourceDesk     string    `json:"sourceDesk"` // desk whose flow surfaced this wallet
	TotalScore     float64   `json:"totalScore"` // 0-100
	Recommendation string    `json:"recommendation"`
	ScoredAt       time.Time `json:"scoredAt"`

	OTCInteractionScore float64 `json:"otcInteractionScore"` // 0-30
	VolumeScore         float64 `json:"volumeScore"`         // 0-25
	ActivityScore       float64 `json:"activityScore"`       // 0-25
	NetworkScore        float64 `json:"networkScore"`        // 0-20

	KnownOTCCounterparties int     `json:"knownOtcCounterparties"`
	TotalVolumeUSD         float64 `json:"totalVolumeUsd"`
}
