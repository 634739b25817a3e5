package clustering

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/rawblock/otc-engine/internal/graph"
	"github.com/rawblock/otc-engine/pkg/models"
)

const (
	maxHubAddresses      = 3
	updateSampleSize     = 10
	meshDensityFloor     = 0.4
	hubDegreeShare       = 0.5
	chainMaxMemberDegree = 2
)

// Config bundles the knobs for cluster construction.
type Config struct {
	MultiHop            MultiHopConfig
	Similarity          SimilarityWeights
	SimilarityThreshold float64
}

func DefaultConfig() Config {
	return Config{
		MultiHop:            DefaultMultiHopConfig(),
		Similarity:          DefaultSimilarityWeights(),
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
}

// Builder assembles and incrementally maintains clusters on a built graph.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// CreateCluster discovers the multi-hop neighborhood of the seeds, keeps
// the addresses that cluster with a seed under similarity merging, and
// annotates the result with topology, hubs and density.
//
// The cluster id is a hash over the sorted seed list, so the same seed
// set always produces the same id regardless of input order.
func (b *Builder) CreateCluster(g *graph.TransactionGraph, seeds []string, profiles map[string]*models.WalletProfile) (*models.Cluster, error) {
	if g == nil || len(seeds) == 0 {
		return nil, fmt.Errorf("create cluster: %w: graph and seeds are required", models.ErrInvalidInput)
	}

	sortedSeeds := make([]string, len(seeds))
	copy(sortedSeeds, seeds)
	sort.Strings(sortedSeeds)

	discovered := DiscoverNeighborhood(g, seeds, b.cfg.MultiHop)

	seedSet := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		seedSet[s] = true
	}

	// Seeds are members unconditionally. Discovered addresses without
	// profile data are admitted on connectivity alone; profiled ones must
	// land in a similarity group together with a profiled seed. When no
	// seed carries a profile the similarity layer has nothing to compare
	// against and the whole neighborhood stands.
	memberSet := make(map[string]bool, len(discovered))
	for _, s := range seeds {
		memberSet[s] = true
	}

	profiledSeed := false
	for _, s := range seeds {
		if profiles[s] != nil {
			profiledSeed = true
			break
		}
	}

	var profiled []string
	for _, addr := range discovered {
		if profiles[addr] == nil || !profiledSeed {
			memberSet[addr] = true
		} else {
			profiled = append(profiled, addr)
		}
	}

	for _, group := range AgglomerativeCluster(profiled, profiles, b.cfg.Similarity, b.cfg.SimilarityThreshold) {
		holdsSeed := false
		for _, addr := range group {
			if seedSet[addr] {
				holdsSeed = true
				break
			}
		}
		if holdsSeed {
			for _, addr := range group {
				memberSet[addr] = true
			}
		}
	}
	members := setToSorted(memberSet)

	now := time.Now().UTC()
	cluster := &models.Cluster{
		ClusterID:       clusterID(sortedSeeds),
		SeedAddresses:   sortedSeeds,
		MemberAddresses: members,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	annotate(cluster, g)
	return cluster, nil
}

// UpdateCluster admits candidates that connect to an existing member and
// whose average similarity against a sample of current members clears the
// threshold. Membership only grows; nothing is ever evicted.
func (b *Builder) UpdateCluster(g *graph.TransactionGraph, cluster *models.Cluster, candidates []string, profiles map[string]*models.WalletProfile) error {
	if g == nil || cluster == nil {
		return fmt.Errorf("update cluster: %w: graph and cluster are required", models.ErrInvalidInput)
	}

	memberSet := make(map[string]bool, len(cluster.MemberAddresses))
	for _, m := range cluster.MemberAddresses {
		memberSet[m] = true
	}

	sample := cluster.MemberAddresses
	if len(sample) > updateSampleSize {
		sample = sample[:updateSampleSize]
	}

	admitted := false
	for _, cand := range candidates {
		if memberSet[cand] {
			continue
		}
		if !connectedToAny(g, cand, cluster.MemberAddresses) {
			continue
		}
		if avgSimilarityTo(cand, sample, profiles, b.cfg.Similarity) > b.cfg.SimilarityThreshold {
			memberSet[cand] = true
			admitted = true
		}
	}

	if admitted {
		cluster.MemberAddresses = setToSorted(memberSet)
		cluster.UpdatedAt = time.Now().UTC()
		annotate(cluster, g)
	}
	return nil
}

func connectedToAny(g *graph.TransactionGraph, addr string, members []string) bool {
	for _, m := range members {
		if _, ok := g.EdgeBetween(addr, m); ok {
			return true
		}
	}
	return false
}

func avgSimilarityTo(addr string, sample []string, profiles map[string]*models.WalletProfile, w SimilarityWeights) float64 {
	if len(sample) == 0 {
		return 0
	}
	var sum float64
	for _, m := range sample {
		sum += Similarity(profiles[addr], profiles[m], w)
	}
	return sum / float64(len(sample))
}

// annotate recomputes topology, hubs, density and activity stats from the
// member-induced subgraph.
func annotate(cluster *models.Cluster, g *graph.TransactionGraph) {
	members := cluster.MemberAddresses
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	// Degree within the subgraph, counting each internal edge once per
	// endpoint direction.
	degree := make(map[string]int, len(members))
	internalEdges := 0
	var txCount int
	var volume float64
	var first, last time.Time
	for _, e := range g.Edges() {
		if !memberSet[e.From] || !memberSet[e.To] {
			continue
		}
		internalEdges++
		txCount += e.Weight
		volume += e.TotalValue
		degree[e.From]++
		if e.To != e.From {
			degree[e.To]++
		}
		if first.IsZero() || e.FirstSeen.Before(first) {
			first = e.FirstSeen
		}
		if e.LastSeen.After(last) {
			last = e.LastSeen
		}
	}

	n := len(members)
	density := 0.0
	if n > 1 {
		density = float64(internalEdges) / float64(n*(n-1))
	}

	cluster.HubAddresses = topByDegree(members, degree, maxHubAddresses)
	cluster.Density = density
	cluster.TopologyType = classifyTopology(members, degree, internalEdges, density)
	cluster.FirstActivity = first
	cluster.LastActivity = last
	cluster.TxCount = txCount
	cluster.TotalVolumeUSD = volume
}

// topByDegree returns up to limit members sorted by subgraph degree
// descending, ties broken alphabetically. Zero-degree members are skipped.
func topByDegree(members []string, degree map[string]int, limit int) []string {
	ranked := make([]string, 0, len(members))
	for _, m := range members {
		if degree[m] > 0 {
			ranked = append(ranked, m)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if degree[ranked[i]] != degree[ranked[j]] {
			return degree[ranked[i]] > degree[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// classifyTopology inspects the member-induced subgraph:
// no internal edges -> isolated; one member touching at least half of all
// edge endpoints -> hub_spoke; dense -> mesh; every member of degree two
// or less -> chain; otherwise mixed.
func classifyTopology(members []string, degree map[string]int, internalEdges int, density float64) string {
	if internalEdges == 0 || len(members) < 2 {
		return models.TopologyIsolated
	}

	maxDegree := 0
	allLow := true
	for _, m := range members {
		d := degree[m]
		if d > maxDegree {
			maxDegree = d
		}
		if d > chainMaxMemberDegree {
			allLow = false
		}
	}

	if len(members) >= 3 && float64(maxDegree) >= hubDegreeShare*float64(2*internalEdges) {
		return models.TopologyHubSpoke
	}
	if density >= meshDensityFloor {
		return models.TopologyMesh
	}
	if allLow {
		return models.TopologyChain
	}
	return models.TopologyMixed
}

func clusterID(sortedSeeds []string) string {
	h := sha256.New()
	for _, s := range sortedSeeds {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return "cluster_" + hex.EncodeToString(h.Sum(nil))[:16]
}
