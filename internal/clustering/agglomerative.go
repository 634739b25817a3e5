package clustering

import (
	"github.com/rawblock/otc-engine/pkg/models"
)

// Agglomerative Merge
//
// Average-linkage clustering over wallet profiles: every address starts as
// a singleton, and the pair of clusters with the highest average pairwise
// member similarity merges, repeatedly, while that average clears the
// threshold. Each merge changes the candidate pool, so the loop is
// inherently sequential.
//
// Cost is O(n²) similarity evaluations per pass. That is acceptable for
// cluster-local address sets coming out of multi-hop discovery; it is not
// meant for whole-chain graphs.

// DefaultSimilarityThreshold gates agglomerative merges.
const DefaultSimilarityThreshold = 0.7

// AgglomerativeCluster groups addresses into clusters by average pairwise
// similarity. addresses fixes the iteration order; profiles may omit
// entries, which then stay singletons.
func AgglomerativeCluster(addresses []string, profiles map[string]*models.WalletProfile, w SimilarityWeights, threshold float64) [][]string {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	clusters := make([][]string, 0, len(addresses))
	for _, addr := range addresses {
		clusters = append(clusters, []string{addr})
	}

	for len(clusters) > 1 {
		bestI, bestJ := -1, -1
		bestAvg := 0.0

		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				avg := averageLinkage(clusters[i], clusters[j], profiles, w)
				if avg > bestAvg {
					bestAvg = avg
					bestI, bestJ = i, j
				}
			}
		}

		if bestAvg <= threshold || bestI < 0 {
			break
		}

		merged := append(append([]string{}, clusters[bestI]...), clusters[bestJ]...)
		next := make([][]string, 0, len(clusters)-1)
		for k, c := range clusters {
			if k != bestI && k != bestJ {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}
	return clusters
}

// averageLinkage computes the mean similarity across every cross-cluster
// member pair.
func averageLinkage(a, b []string, profiles map[string]*models.WalletProfile, w SimilarityWeights) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range a {
		for _, y := range b {
			sum += Similarity(profiles[x], profiles[y], w)
		}
	}
	return sum / float64(len(a)*len(b))
}
