package clustering

import (
	"math"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Pairwise Wallet Similarity
//
// Weighted sum of four normalized terms, each in [0,1]:
//
//   transaction frequency   0.25   1 - |Δfreq| / max(freq, 1)
//   temporal proximity      0.30   Jaccard over active-hour sets
//   amount correlation      0.25   1 - |Δmedian| / max(median, 1)
//   shared counterparties   0.20   Jaccard over counterparty sets
//
// Every term is symmetric in its arguments, so similarity(A,B) equals
// similarity(B,A) by construction and the result stays in [0,1].

// SimilarityWeights tune the four terms; they should sum to 1.
type SimilarityWeights struct {
	Frequency    float64
	Temporal     float64
	Amount       float64
	Counterparty float64
}

// DefaultSimilarityWeights mirrors production clustering weights.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{
		Frequency:    0.25,
		Temporal:     0.30,
		Amount:       0.25,
		Counterparty: 0.20,
	}
}

// Similarity scores two wallet profiles. Nil profiles score 0.
func Similarity(a, b *models.WalletProfile, w SimilarityWeights) float64 {
	if a == nil || b == nil {
		return 0
	}

	freq := 1 - math.Abs(a.TxPerDay-b.TxPerDay)/math.Max(math.Max(a.TxPerDay, b.TxPerDay), 1)
	temporal := jaccardHours(a.ActiveHours, b.ActiveHours)
	amount := 1 - math.Abs(a.MedianTxUSD-b.MedianTxUSD)/math.Max(math.Max(a.MedianTxUSD, b.MedianTxUSD), 1)
	counterparty := jaccardCounterparties(a.CounterpartyTxCounts, b.CounterpartyTxCounts)

	score := freq*w.Frequency + temporal*w.Temporal + amount*w.Amount + counterparty*w.Counterparty
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// jaccardHours computes |A∩B| / |A∪B| over active-hour sets. Two empty
// sets are treated as fully similar: both wallets are silent.
func jaccardHours(a, b map[int]bool) float64 {
	intersection, union := 0, 0
	for h := 0; h < 24; h++ {
		inA, inB := a[h], b[h]
		if inA || inB {
			union++
		}
		if inA && inB {
			intersection++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

// jaccardCounterparties computes the Jaccard index over counterparty
// address sets. Two wallets with no counterparties share nothing: 0.
func jaccardCounterparties(a, b map[string]int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for addr := range a {
		if _, ok := b[addr]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
