package network

import (
	"sort"
)

// Suspicious Topology Detection
//
// Beyond per-address centrality, two graph shapes correlate strongly with
// institutional flow:
//
//   - Star topologies: one hub with many direct spokes, the signature of a
//     desk settling against many counterparties from one hot wallet
//   - Value cycles: funds returning to their origin within a few hops,
//     typical of wash trading and inventory rebalancing between desks
//
// Cycle enumeration is combinatorially explosive on dense graphs, so the
// search is bounded: simple cycles of length 3-6 only, and the search stops
// after the first 50 cycles found. That keeps cost predictable while still
// surfacing the patterns analysts act on.

const (
	maxCycleLength     = 6
	minCycleLength     = 3
	maxCyclesCollected = 50
	minCycleValueUSD   = 100_000
	minStarNeighbors   = 5
)

// HubCandidate pairs an address with its hub score for ranking.
type HubCandidate struct {
	Address  string  `json:"address"`
	HubScore float64 `json:"hubScore"`
}

// StarPattern is a hub with at least minStarNeighbors direct spokes.
type StarPattern struct {
	Center        string   `json:"center"`
	SpokeCount    int      `json:"spokeCount"`
	Spokes        []string `json:"spokes"`
}

// CyclePattern is a value-significant simple cycle.
type CyclePattern struct {
	Addresses  []string `json:"addresses"` // cycle order, first node not repeated
	Length     int      `json:"length"`
	TotalValue float64  `json:"totalValue"` // aggregate USD over cycle edges
}

// SuspiciousPatterns bundles the topology findings for one graph.
type SuspiciousPatterns struct {
	Stars  []StarPattern  `json:"stars"`
	Cycles []CyclePattern `json:"cycles"`
}

// IdentifyOTCHubs returns every hub node whose hub score clears minScore,
// sorted descending by score. Ties are broken by node insertion order so
// the ranking is deterministic for identical inputs.
func (a *Analyzer) IdentifyOTCHubs(minScore float64) []HubCandidate {
	var hubs []HubCandidate
	for _, addr := range a.g.Nodes() {
		m, _ := a.Metrics(addr)
		if m.IsHub && m.HubScore >= minScore {
			hubs = append(hubs, HubCandidate{Address: addr, HubScore: m.HubScore})
		}
	}

	sort.SliceStable(hubs, func(i, j int) bool {
		if hubs[i].HubScore != hubs[j].HubScore {
			return hubs[i].HubScore > hubs[j].HubScore
		}
		oi, _ := a.g.NodeOrder(hubs[i].Address)
		oj, _ := a.g.NodeOrder(hubs[j].Address)
		return oi < oj
	})
	return hubs
}

// DetectSuspiciousPatterns flags star topologies and value-significant
// cycles across the whole graph.
func (a *Analyzer) DetectSuspiciousPatterns() SuspiciousPatterns {
	return SuspiciousPatterns{
		Stars:  a.detectStars(),
		Cycles: a.detectValueCycles(),
	}
}

// detectStars finds hub nodes with minStarNeighbors or more direct spokes.
func (a *Analyzer) detectStars() []StarPattern {
	var stars []StarPattern
	for _, addr := range a.g.Nodes() {
		m, _ := a.Metrics(addr)
		if !m.IsHub {
			continue
		}
		spokes := a.g.UndirectedNeighbors(addr)
		if len(spokes) >= minStarNeighbors {
			stars = append(stars, StarPattern{
				Center:     addr,
				SpokeCount: len(spokes),
				Spokes:     spokes,
			})
		}
	}
	return stars
}

// detectValueCycles enumerates simple cycles of length 3-6 whose aggregate
// edge value exceeds minCycleValueUSD. Enumeration is bounded at
// maxCyclesCollected; each cycle is rooted at its lowest-insertion-index
// member so the same cycle is not reported once per node.
func (a *Analyzer) detectValueCycles() []CyclePattern {
	var cycles []CyclePattern

	for _, root := range a.g.Nodes() {
		if len(cycles) >= maxCyclesCollected {
			break
		}
		rootOrder, _ := a.g.NodeOrder(root)
		onPath := map[string]bool{root: true}
		path := []string{root}
		a.cycleDFS(root, root, rootOrder, path, onPath, 0, &cycles)
	}
	return cycles
}

func (a *Analyzer) cycleDFS(root, current string, rootOrder int, path []string, onPath map[string]bool, value float64, cycles *[]CyclePattern) {
	if len(*cycles) >= maxCyclesCollected {
		return
	}

	for _, next := range a.g.Successors(current) {
		if len(*cycles) >= maxCyclesCollected {
			return
		}

		e, _ := a.g.GetEdge(current, next)
		if next == root {
			if len(path) >= minCycleLength {
				total := value + e.TotalValue
				if total > minCycleValueUSD {
					cycle := make([]string, len(path))
					copy(cycle, path)
					*cycles = append(*cycles, CyclePattern{
						Addresses:  cycle,
						Length:     len(cycle),
						TotalValue: total,
					})
				}
			}
			continue
		}

		// Only the lowest-ordered node roots each cycle once
		order, _ := a.g.NodeOrder(next)
		if order < rootOrder || onPath[next] || len(path) >= maxCycleLength {
			continue
		}

		onPath[next] = true
		a.cycleDFS(root, next, rootOrder, append(path, next), onPath, value+e.TotalValue, cycles)
		delete(onPath, next)
	}
}
