package clustering

import (
	"github.com/rawblock/otc-engine/internal/graph"
)

// Multi-Hop Neighborhood Discovery
//
// Breadth-first expansion from one or more seed addresses, following
// edges in both directions: who the seeds pay and who pays the seeds are
// equally relevant to common control. Edges below the value floor are
// pruned so dust and retail noise cannot drag unrelated addresses into a
// candidate set. The visited set accumulates across all seeds, so
// overlapping neighborhoods are discovered once.

// MultiHopConfig bounds the traversal.
type MultiHopConfig struct {
	MaxHops                int
	MinTransactionValueUSD float64
}

// DefaultMultiHopConfig mirrors production traversal bounds.
func DefaultMultiHopConfig() MultiHopConfig {
	return MultiHopConfig{
		MaxHops:                3,
		MinTransactionValueUSD: 100_000,
	}
}

// DiscoverNeighborhood returns every address reachable from the seeds
// within MaxHops over value-significant edges, seeds included. Seeds
// absent from the graph contribute only themselves.
func DiscoverNeighborhood(g *graph.TransactionGraph, seeds []string, cfg MultiHopConfig) []string {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMultiHopConfig().MaxHops
	}

	visited := make(map[string]bool)
	var discovered []string

	visit := func(addr string) {
		if !visited[addr] {
			visited[addr] = true
			discovered = append(discovered, addr)
		}
	}

	for _, seed := range seeds {
		visit(seed)
		if !g.HasNode(seed) {
			continue
		}

		frontier := []string{seed}
		for hop := 0; hop < cfg.MaxHops && len(frontier) > 0; hop++ {
			var next []string
			for _, node := range frontier {
				for _, neighbor := range g.UndirectedNeighbors(node) {
					if visited[neighbor] {
						continue
					}
					e, ok := g.EdgeBetween(node, neighbor)
					if !ok || e.TotalValue < cfg.MinTransactionValueUSD {
						continue
					}
					visit(neighbor)
					next = append(next, neighbor)
				}
			}
			frontier = next
		}
	}
	return discovered
}
