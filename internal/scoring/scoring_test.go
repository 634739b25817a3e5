package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/rawblock/otc-engine/internal/heuristics"
	"github.com/rawblock/otc-engine/pkg/models"
)

func usd(v float64) *float64 { return &v }

func TestTransferSizeScore_Sigmoid(t *testing.T) {
	// Midpoint sits at exactly 50.
	if s := TransferSizeScore(500_000); math.Abs(s-50) > 1e-9 {
		t.Errorf("Expected 50 at the $500k midpoint. Got: %f", s)
	}
	// $5M: 2e-6 * 4.5e6 = 9 sigma units, effectively saturated.
	if s := TransferSizeScore(5_000_000); s < 99.9 {
		t.Errorf("Expected near-saturation for $5M. Got: %f", s)
	}
	// Zero value still yields a small positive sigmoid tail, not negative.
	if s := TransferSizeScore(0); s < 0 || s > 50 {
		t.Errorf("Expected 0 <= score < 50 for $0. Got: %f", s)
	}
}

func TestWalletProfileScore_DeskTemplate(t *testing.T) {
	p := &models.WalletProfile{
		TxPerDay:            1.0,
		AvgTxUSD:            2_000_000,
		CounterpartyEntropy: 1.0,
	}

	score := WalletProfileScore(p)
	// 22.5 frequency + 30 value + 25 no-DeFi + 15 entropy
	if math.Abs(score-92.5) > 1e-9 {
		t.Errorf("Expected 92.5 for the desk template. Got: %f", score)
	}
}

func TestWalletProfileScore_DexOnlyAbsent(t *testing.T) {
	p := &models.WalletProfile{
		TxPerDay:            20, // decays to zero
		AvgTxUSD:            50_000,
		HasDeFiInteractions: true,
		CounterpartyEntropy: 4,
	}

	score := WalletProfileScore(p)
	// Only the 12.5 partial DeFi credit survives.
	if math.Abs(score-12.5) > 1e-9 {
		t.Errorf("Expected 12.5. Got: %f", score)
	}
}

func TestWalletProfileScore_NilProfile(t *testing.T) {
	if s := WalletProfileScore(nil); s != 0 {
		t.Errorf("Expected 0 for nil profile. Got: %f", s)
	}
}

func TestKnownEntityScore_MaxOfEndpoints(t *testing.T) {
	score := KnownEntityScore(
		EntityMatch{IsOTCDesk: true, Confidence: 0.6},
		EntityMatch{IsOTCDesk: true, Confidence: 0.9},
	)
	if math.Abs(score-90) > 1e-9 {
		t.Errorf("Expected max endpoint score 90. Got: %f", score)
	}

	if s := KnownEntityScore(EntityMatch{}, EntityMatch{}); s != 0 {
		t.Errorf("Expected 0 when neither endpoint matches. Got: %f", s)
	}
}

func TestScore_WeightedTotal(t *testing.T) {
	ts := time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC) // Saturday night
	in := Input{
		Tx: models.TransactionRecord{
			Hash: "0x1", FromAddress: "A", ToAddress: "B",
			USDValue: usd(5_000_000), Timestamp: ts,
		},
		Profile: &models.WalletProfile{
			TxPerDay:            1.0,
			AvgTxUSD:            2_000_000,
			CounterpartyEntropy: 1.0,
		},
		Network: &models.NetworkMetrics{
			BetweennessCentrality: 0.3,
			DegreeCentrality:      0.5,
			ClusteringCoefficient: 0.1,
		},
		Timing:   heuristics.AnalyzeTiming(ts),
		ToEntity: EntityMatch{IsOTCDesk: true, Confidence: 0.95},
	}

	total, components := Score(in)

	// network position: 0.3*50 + 0.5*30 + 0.9*20 = 48
	if math.Abs(components.NetworkPosition-48) > 1e-9 {
		t.Errorf("Expected network component 48. Got: %f", components.NetworkPosition)
	}
	if components.Timing != 100 {
		t.Errorf("Expected timing 100 for Saturday night. Got: %f", components.Timing)
	}

	expected := components.TransferSize*WeightTransferSize +
		components.WalletProfile*WeightWalletProfile +
		48*WeightNetworkPosition +
		100*WeightTiming +
		95*WeightKnownEntity
	if math.Abs(total-expected) > 1e-9 {
		t.Errorf("Expected weighted sum %f. Got: %f", expected, total)
	}

	if models.ClassifyScore(total) != models.ClassificationHighConfidence {
		t.Errorf("Expected high_confidence for a desk-pattern $5M transfer. Got: %s (score %f)", models.ClassifyScore(total), total)
	}
}

func TestScore_FloorWithEverySignalAbsent(t *testing.T) {
	in := Input{
		Tx:     models.TransactionRecord{Hash: "0x2", Timestamp: time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)},
		Timing: heuristics.AnalyzeTiming(time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)),
	}

	total, _ := Score(in)
	if total < 0 || total > 100 {
		t.Errorf("Score must stay within [0,100]. Got: %f", total)
	}
}
