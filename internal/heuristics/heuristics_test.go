package heuristics

import (
	"math"
	"testing"
	"time"

	"github.com/rawblock/otc-engine/pkg/models"
)

func TestAnalyzeTransferSize_BelowFloor(t *testing.T) {
	result := AnalyzeTransferSize(50_000, nil, DefaultOTCFloorUSD, DefaultHighValueUSD)

	if result.Score != 0 {
		t.Errorf("Expected score 0 below the OTC floor. Got: %f", result.Score)
	}
	if result.IsAnomaly {
		t.Error("Expected no anomaly flag below the OTC floor")
	}
}

func TestAnalyzeTransferSize_RatioFallback(t *testing.T) {
	// Only 3 historical samples: statistical path is unreliable, fall back
	// to the ratio against the $1M high-value threshold.
	history := []float64{10_000, 20_000, 15_000}

	result := AnalyzeTransferSize(500_000, history, DefaultOTCFloorUSD, DefaultHighValueUSD)
	if !result.UsedRatioFallback {
		t.Error("Expected ratio fallback with fewer than 10 samples")
	}
	if math.Abs(result.Score-50) > 1e-9 {
		t.Errorf("Expected ratio score 50 for $500k vs $1M. Got: %f", result.Score)
	}
	if result.IsAnomaly {
		t.Error("Expected no anomaly flag under the high-value threshold")
	}

	result = AnalyzeTransferSize(2_000_000, history, DefaultOTCFloorUSD, DefaultHighValueUSD)
	if result.Score != 100 {
		t.Errorf("Expected ratio score capped at 100. Got: %f", result.Score)
	}
	if !result.IsAnomaly {
		t.Error("Expected anomaly flag at or above the high-value threshold")
	}
}

func TestAnalyzeTransferSize_Statistical(t *testing.T) {
	// 20 samples around $100k, then a $1M outlier.
	history := make([]float64, 20)
	for i := range history {
		history[i] = 90_000 + float64(i)*1_000
	}

	result := AnalyzeTransferSize(1_000_000, history, DefaultOTCFloorUSD, DefaultHighValueUSD)
	if result.UsedRatioFallback {
		t.Error("Expected statistical path with 20 samples")
	}
	if !result.IsAnomaly {
		t.Errorf("Expected z > 2 anomaly for a 10x outlier. z=%f", result.ZScore)
	}
	if result.Percentile != 100 {
		t.Errorf("Expected percentile 100 for a maximum value. Got: %f", result.Percentile)
	}
	// percentile*0.7 + capped z bonus = 70 + 30
	if math.Abs(result.Score-100) > 1e-9 {
		t.Errorf("Expected score 100. Got: %f", result.Score)
	}
}

func TestAnalyzeTransferSize_ZeroStd(t *testing.T) {
	history := make([]float64, 12)
	for i := range history {
		history[i] = 100_000
	}

	result := AnalyzeTransferSize(100_000, history, DefaultOTCFloorUSD, DefaultHighValueUSD)
	if result.ZScore != 0 {
		t.Errorf("Expected z=0 when std is 0. Got: %f", result.ZScore)
	}
	if result.IsAnomaly {
		t.Error("Expected no anomaly when every sample is identical")
	}
}

func TestAnalyzeBehavior_FullProfile(t *testing.T) {
	profile := &models.WalletProfile{
		TxPerDay:            0.1,
		AvgTxUSD:            250_000,
		HasDeFiInteractions: false,
		HasDexSwaps:         false,
	}

	result := AnalyzeBehavior(profile)
	if result.Score != 100 {
		t.Errorf("Expected full behavior score 100. Got: %f", result.Score)
	}
	if !result.IsOTCProfile {
		t.Error("Expected OTC profile flag at score >= 50")
	}
}

func TestAnalyzeBehavior_DexOnlyPartialCredit(t *testing.T) {
	profile := &models.WalletProfile{
		TxPerDay:    5.0, // active trader
		AvgTxUSD:    10_000,
		HasDexSwaps: true,
	}

	result := AnalyzeBehavior(profile)
	if result.Score != 25 {
		t.Errorf("Expected 25 partial credit when only DEX is present. Got: %f", result.Score)
	}
	if result.IsOTCProfile {
		t.Error("Expected no OTC profile flag at score 25")
	}
}

func TestAnalyzeBehavior_NilProfile(t *testing.T) {
	result := AnalyzeBehavior(nil)
	if result.Score != 0 || result.IsOTCProfile {
		t.Errorf("Expected zero result for nil profile. Got: %+v", result)
	}
}

func TestAnalyzeTiming_SaturdayNight(t *testing.T) {
	// Saturday 23:00 UTC: off-hours and weekend both fire.
	ts := time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC)
	if ts.Weekday() != time.Saturday {
		t.Fatalf("Test fixture is not a Saturday: %v", ts.Weekday())
	}

	result := AnalyzeTiming(ts)
	if result.Score != 100 {
		t.Errorf("Expected timing score 100 for Saturday 23:00. Got: %f", result.Score)
	}
	if !result.OffHours || !result.Weekend {
		t.Errorf("Expected both indicators set. Got: %+v", result)
	}
}

func TestAnalyzeTiming_TuesdayAfternoon(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	if ts.Weekday() != time.Tuesday {
		t.Fatalf("Test fixture is not a Tuesday: %v", ts.Weekday())
	}

	result := AnalyzeTiming(ts)
	if result.Score != 0 {
		t.Errorf("Expected timing score 0 for Tuesday 14:00. Got: %f", result.Score)
	}
}

func TestAnalyzeTiming_EarlyMorningBoundary(t *testing.T) {
	// 05:59 is off-hours, 06:00 is not.
	early := AnalyzeTiming(time.Date(2024, 3, 5, 5, 59, 0, 0, time.UTC))
	if !early.OffHours {
		t.Error("Expected 05:59 UTC to count as off-hours")
	}
	six := AnalyzeTiming(time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC))
	if six.OffHours {
		t.Error("Expected 06:00 UTC to be inside business hours")
	}
}

func TestAnalyzeRoundNumber_ExactMillion(t *testing.T) {
	result := AnalyzeRoundNumber(1_000_000)
	if !result.IsRound {
		t.Error("Expected $1,000,000 to be round")
	}
	if result.Level != "million" {
		t.Errorf("Expected level million. Got: %s", result.Level)
	}
	if result.Score != 80 {
		t.Errorf("Expected score 80. Got: %f", result.Score)
	}
}

func TestAnalyzeRoundNumber_NotRound(t *testing.T) {
	result := AnalyzeRoundNumber(1_234_567)
	if result.IsRound {
		t.Errorf("Expected $1,234,567 not to be round. Got level %s", result.Level)
	}
	if result.Score != 0 {
		t.Errorf("Expected score 0. Got: %f", result.Score)
	}
}

func TestAnalyzeRoundNumber_ToleranceAndMultiples(t *testing.T) {
	// Within 1% of $10M
	if r := AnalyzeRoundNumber(10_050_000); !r.IsRound || r.Level != "ten_million" {
		t.Errorf("Expected $10.05M to round to ten_million. Got: %+v", r)
	}
	// Multiple of $1M
	if r := AnalyzeRoundNumber(3_000_000); !r.IsRound || r.Level != "million" {
		t.Errorf("Expected $3M to round as a million multiple. Got: %+v", r)
	}
	// Exact half million
	if r := AnalyzeRoundNumber(500_000); !r.IsRound || r.Level != "half_million" || r.Score != 70 {
		t.Errorf("Expected $500k at half_million/70. Got: %+v", r)
	}
}

func TestAnalyze_CombinedWeights(t *testing.T) {
	usd := 1_000_000.0
	tx := models.TransactionRecord{
		Hash:        "0xabc",
		FromAddress: "A",
		ToAddress:   "B",
		USDValue:    &usd,
		Timestamp:   time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC), // Saturday night
	}
	profile := &models.WalletProfile{
		TxPerDay: 0.2,
		AvgTxUSD: 300_000,
	}

	a := NewAnalyzer(DefaultConfig())
	result := a.Analyze(tx, profile, nil)

	// size: ratio fallback $1M/$1M = 100; behavior: 100; timing: 100; round: 80
	expected := 100*0.35 + 100*0.25 + 100*0.20 + 80*0.20
	if math.Abs(result.CombinedScore-expected) > 1e-9 {
		t.Errorf("Expected combined %f. Got: %f", expected, result.CombinedScore)
	}
	if !result.IsSuspectedOTC {
		t.Error("Expected suspected flag at combined >= 60")
	}

	wantPatterns := map[string]bool{
		PatternSizeAnomaly: true,
		PatternOTCBehavior: true,
		PatternOffHours:    true,
		PatternWeekend:     true,
		PatternRoundNumber: true,
	}
	for _, p := range result.Patterns {
		delete(wantPatterns, p)
	}
	if len(wantPatterns) != 0 {
		t.Errorf("Missing pattern tags: %v", wantPatterns)
	}
}
