package discovery

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/pkg/models"
)

func usd(v float64) *float64 { return &v }

func historyTo(wallet string, counterparties []string, perCounterparty int, valueUSD float64) []models.TransactionRecord {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var txs []models.TransactionRecord
	for i, cp := range counterparties {
		for j := 0; j < perCounterparty; j++ {
			txs = append(txs, models.TransactionRecord{
				Hash:        fmt.Sprintf("0x%d_%d", i, j),
				FromAddress: wallet,
				ToAddress:   cp,
				Timestamp:   t0.Add(time.Duration(i*perCounterparty+j) * time.Hour),
				USDValue:    usd(valueUSD),
			})
		}
	}
	return txs
}

func TestScoreWallet_DeskLikeWallet(t *testing.T) {
	desks := registry.NewStatic()
	counterparties := make([]string, 25)
	for i := range counterparties {
		counterparties[i] = fmt.Sprintf("0xcp%d", i)
	}
	for i := 0; i < 5; i++ {
		desks.AddDesk(models.DeskInfo{Address: counterparties[i], Name: fmt.Sprintf("Desk %d", i), Confidence: 0.9})
	}

	txs := historyTo("0xwallet", counterparties, 8, 100_000)
	score, err := NewScorer(desks).ScoreWallet("0xwallet", txs, nil, counterparties[0])
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}

	if score.KnownOTCCounterparties != 5 {
		t.Errorf("Expected 5 known OTC counterparties. Got: %v", score.KnownOTCCounterparties)
	}
	if score.OTCInteractionScore != 30 {
		t.Errorf("Expected OTC interaction score 30. Got: %v", score.OTCInteractionScore)
	}
	if score.VolumeScore != 25 {
		t.Errorf("Expected volume score 25. Got: %v", score.VolumeScore)
	}
	if score.ActivityScore != 20 {
		t.Errorf("Expected activity score 20. Got: %v", score.ActivityScore)
	}
	if score.NetworkScore != 20 {
		t.Errorf("Expected network score 20. Got: %v", score.NetworkScore)
	}
	if score.TotalScore != 95 {
		t.Errorf("Expected total score 95. Got: %v", score.TotalScore)
	}
	if score.Recommendation != models.RecommendationAutoSave {
		t.Errorf("Expected AUTO_SAVE. Got: %v", score.Recommendation)
	}
}

func TestScoreWallet_SourceDeskAlwaysCounts(t *testing.T) {
	// The discovering desk never appears in the fetched history, yet the
	// wallet still registers one OTC interaction.
	txs := historyTo("0xwallet", []string{"0xretail"}, 3, 40_000)
	score, err := NewScorer(nil).ScoreWallet("0xwallet", txs, nil, "0xdesk")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}

	if score.KnownOTCCounterparties != 1 {
		t.Errorf("Expected 1 known OTC counterparty. Got: %v", score.KnownOTCCounterparties)
	}
	if score.OTCInteractionScore != 12 {
		t.Errorf("Expected OTC interaction score 12. Got: %v", score.OTCInteractionScore)
	}
	if score.Recommendation != models.RecommendationUnlikely {
		t.Errorf("Expected UNLIKELY_OTC. Got: %v", score.Recommendation)
	}
}

func TestScoreWallet_ConcentrationNotPenalizedAtHighValue(t *testing.T) {
	// Two counterparties and entropy 1.0: a retail-sized book loses
	// entropy points, a large-transfer book does not.
	large := historyTo("0xwallet", []string{"0xa", "0xb"}, 10, 500_000)
	small := historyTo("0xwallet", []string{"0xa", "0xb"}, 10, 1_000)

	largeScore, err := NewScorer(nil).ScoreWallet("0xwallet", large, nil, "")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	smallScore, err := NewScorer(nil).ScoreWallet("0xwallet", small, nil, "")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}

	if largeScore.NetworkScore != 14 {
		t.Errorf("Expected network score 14 for the large-transfer book. Got: %v", largeScore.NetworkScore)
	}
	if smallScore.NetworkScore != 6 {
		t.Errorf("Expected network score 6 for the retail-sized book. Got: %v", smallScore.NetworkScore)
	}
}

func TestScoreWallet_TokenAmountFallback(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var txs []models.TransactionRecord
	for i := 0; i < 4; i++ {
		txs = append(txs, models.TransactionRecord{
			Hash:        fmt.Sprintf("0x%d", i),
			FromAddress: "0xwallet",
			ToAddress:   "0xcp",
			Timestamp:   t0,
			TokenSymbol: "ETH",
			TokenAmount: 500,
		})
	}

	score, err := NewScorer(nil).ScoreWallet("0xwallet", txs, nil, "")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	if score.TotalVolumeUSD != 0 {
		t.Errorf("Expected no USD volume. Got: %v", score.TotalVolumeUSD)
	}
	if score.VolumeScore != 18 {
		t.Errorf("Expected token-tier volume score 18. Got: %v", score.VolumeScore)
	}
}

func TestScoreWallet_ProfileCounterparties(t *testing.T) {
	// When a profile is supplied its counterparty distribution wins over
	// re-deriving one from the history.
	profile := &models.WalletProfile{
		CounterpartyTxCounts: map[string]int{"0xa": 5, "0xb": 5, "0xc": 5},
	}
	score, err := NewScorer(nil).ScoreWallet("0xwallet", nil, profile, "")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	// Entropy log2(3) over three even counterparties plus breadth bonus.
	if score.NetworkScore != 8 {
		t.Errorf("Expected network score 8. Got: %v", score.NetworkScore)
	}
}

func TestScoreWallet_InvalidInput(t *testing.T) {
	if _, err := NewScorer(nil).ScoreWallet("", nil, nil, "0xdesk"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected invalid input error. Got: %v", err)
	}
}
