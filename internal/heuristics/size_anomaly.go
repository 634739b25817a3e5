package heuristics

import (
	"math"
)

// Transfer Size Anomaly Detection
//
// OTC trades are large relative to an address's own history. The detector
// prefers a statistical read (z-score plus percentile rank against the
// wallet's historical USD values) and falls back to a simple ratio against
// a fixed high-value threshold when history is too thin to be meaningful.
//
// Sub-score composition when history is available:
//   score = min(100, percentile*0.7 + min(z*10, 30))
// so a transfer can only reach the top of the band by being both unusual
// for the wallet (percentile) and far outside its distribution (z).

const (
	// DefaultOTCFloorUSD is the minimum transfer size considered at all.
	DefaultOTCFloorUSD = 100_000
	// DefaultHighValueUSD is the ratio fallback threshold for thin history.
	DefaultHighValueUSD = 1_000_000
	// minHistorySamples gates the statistical path.
	minHistorySamples = 10
	// anomalyZScore is the z-score cut for the anomaly flag.
	anomalyZScore = 2.0
)

// SizeAnomalyResult holds the transfer-size sub-analysis.
type SizeAnomalyResult struct {
	Score       float64 `json:"score"` // 0-100
	IsAnomaly   bool    `json:"isAnomaly"`
	ZScore      float64 `json:"zScore"`
	Percentile  float64 `json:"percentile"` // fraction of history strictly below, x100
	SampleSize  int     `json:"sampleSize"`
	UsedRatioFallback bool `json:"usedRatioFallback"`
}

// AnalyzeTransferSize scores how anomalous a USD value is against the
// wallet's historical values. Below the OTC floor the result is zero:
// the detector short-circuits those transfers entirely.
func AnalyzeTransferSize(valueUSD float64, historyUSD []float64, floorUSD, highValueUSD float64) SizeAnomalyResult {
	result := SizeAnomalyResult{SampleSize: len(historyUSD)}

	if valueUSD < floorUSD {
		return result
	}

	if len(historyUSD) < minHistorySamples {
		// Thin history: ratio against the fixed high-value threshold
		result.UsedRatioFallback = true
		result.Score = math.Min(100, valueUSD/highValueUSD*100)
		result.IsAnomaly = valueUSD >= highValueUSD
		return result
	}

	mean, std := meanStd(historyUSD)
	z := 0.0
	if std > 0 {
		z = (valueUSD - mean) / std
	}

	below := 0
	for _, v := range historyUSD {
		if v < valueUSD {
			below++
		}
	}
	percentile := float64(below) / float64(len(historyUSD)) * 100

	result.ZScore = z
	result.Percentile = percentile
	result.IsAnomaly = z > anomalyZScore
	result.Score = math.Min(100, percentile*0.7+math.Min(z*10, 30))
	if result.Score < 0 {
		result.Score = 0
	}
	return result
}

// meanStd computes the sample mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
