package shadow

import (
	"math"
	"sort"

	"github.com/rawblock/otc-engine/internal/metrics"
)

// Evaluator measures the structural agreement between the entity
// partitions produced by production and shadow configurations, keyed by
// wallet address. Only addresses present in both partitions participate.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// AdjustedRandIndex scores the pairwise agreement of two partitions.
// Returns a value between -1 and +1 (+1 is identical clustering).
func (e *Evaluator) AdjustedRandIndex(prod, shadow map[string]int) float64 {
	p, s := alignPartitions(prod, shadow)
	return metrics.AdjustedRandIndex(p, s)
}

// VariationOfInformation is the information-theoretic distance between
// two partitions. Lower means closer; 0 means identical.
func (e *Evaluator) VariationOfInformation(prod, shadow map[string]int) float64 {
	p, s := alignPartitions(prod, shadow)
	return metrics.VariationOfInformation(p, s)
}

// Entropy calculates the Shannon entropy of a partition from its
// per-cluster member counts.
func (e *Evaluator) Entropy(clusterCounts map[int]int, total int) float64 {
	if total <= 0 {
		return 0
	}
	var ent float64
	for _, count := range clusterCounts {
		if count <= 0 {
			continue
		}
		p := float64(count) / float64(total)
		ent -= p * math.Log2(p)
	}
	return ent
}

// alignPartitions projects two address-keyed partitions onto the shared
// address set, in deterministic order.
func alignPartitions(prod, shadow map[string]int) ([]int, []int) {
	var shared []string
	for addr := range prod {
		if _, ok := shadow[addr]; ok {
			shared = append(shared, addr)
		}
	}
	sort.Strings(shared)

	p := make([]int, len(shared))
	s := make([]int, len(shared))
	for i, addr := range shared {
		p[i] = prod[addr]
		s[i] = shadow[addr]
	}
	return p, s
}
