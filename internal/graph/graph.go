package graph

import (
	"time"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Transaction Graph Builder
//
// Converts a set of USD-enriched transaction records into a directed,
// weighted graph: nodes are addresses, edges aggregate all flow between one
// ordered address pair. The graph is the shared substrate for centrality
// analysis, multi-hop clustering, and flow tracing, so it is built once per
// run and treated as read-only by every downstream analyzer.
//
// Determinism: node and edge iteration order is the insertion order of first
// appearance. Centrality ties are later broken by that order, which keeps
// detection output stable across runs over the same input.

// Edge aggregates every transaction observed between one ordered address
// pair. Repeated transfers only bump Weight and TotalValue; the edge count
// of the graph equals the number of distinct ordered pairs, never the
// number of transactions.
type Edge struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Weight     int       `json:"weight"`     // transaction count
	TotalValue float64   `json:"totalValue"` // sum of USD values
	FirstSeen  time.Time `json:"firstSeen"`
	LastSeen   time.Time `json:"lastSeen"`
}

// TransactionGraph is a directed multigraph collapsed to one edge per
// ordered pair. Self-edges are legal: a transfer from an address to itself
// produces one.
type TransactionGraph struct {
	nodes     []string                    // insertion order
	nodeIndex map[string]int              // address -> position in nodes
	edges     []*Edge                     // insertion order
	edgeIndex map[[2]string]*Edge         // (from,to) -> edge
	outAdj    map[string][]string         // from -> successors, insertion order
	inAdj     map[string][]string         // to -> predecessors, insertion order
	txCount   int
}

// NewTransactionGraph returns an empty graph.
func NewTransactionGraph() *TransactionGraph {
	return &TransactionGraph{
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[[2]string]*Edge),
		outAdj:    make(map[string][]string),
		inAdj:     make(map[string][]string),
	}
}

// Build constructs the graph for a full record set.
func Build(records []models.TransactionRecord) *TransactionGraph {
	g := NewTransactionGraph()
	for _, rec := range records {
		g.AddTransaction(rec)
	}
	return g
}

// AddTransaction folds one record into the graph, creating endpoint nodes
// on first sight and aggregating into the (from,to) edge.
func (g *TransactionGraph) AddTransaction(rec models.TransactionRecord) {
	g.ensureNode(rec.FromAddress)
	g.ensureNode(rec.ToAddress)
	g.txCount++

	key := [2]string{rec.FromAddress, rec.ToAddress}
	if e, ok := g.edgeIndex[key]; ok {
		e.Weight++
		e.TotalValue += rec.USD()
		if rec.Timestamp.Before(e.FirstSeen) {
			e.FirstSeen = rec.Timestamp
		}
		if rec.Timestamp.After(e.LastSeen) {
			e.LastSeen = rec.Timestamp
		}
		return
	}

	e := &Edge{
		From:       rec.FromAddress,
		To:         rec.ToAddress,
		Weight:     1,
		TotalValue: rec.USD(),
		FirstSeen:  rec.Timestamp,
		LastSeen:   rec.Timestamp,
	}
	g.edgeIndex[key] = e
	g.edges = append(g.edges, e)
	g.outAdj[rec.FromAddress] = append(g.outAdj[rec.FromAddress], rec.ToAddress)
	g.inAdj[rec.ToAddress] = append(g.inAdj[rec.ToAddress], rec.FromAddress)
}

func (g *TransactionGraph) ensureNode(addr string) {
	if _, ok := g.nodeIndex[addr]; !ok {
		g.nodeIndex[addr] = len(g.nodes)
		g.nodes = append(g.nodes, addr)
	}
}

// Nodes returns all addresses in insertion order. The returned slice is
// shared; callers must not mutate it.
func (g *TransactionGraph) Nodes() []string {
	return g.nodes
}

// NodeCount returns the number of distinct addresses.
func (g *TransactionGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct ordered address pairs.
func (g *TransactionGraph) EdgeCount() int {
	return len(g.edges)
}

// TxCount returns the number of transactions folded into the graph.
func (g *TransactionGraph) TxCount() int {
	return g.txCount
}

// Edges returns all edges in insertion order.
func (g *TransactionGraph) Edges() []*Edge {
	return g.edges
}

// HasNode reports whether the address appears in the graph.
func (g *TransactionGraph) HasNode(addr string) bool {
	_, ok := g.nodeIndex[addr]
	return ok
}

// NodeOrder returns the insertion position of an address, used as the
// deterministic tie-break for centrality rankings.
func (g *TransactionGraph) NodeOrder(addr string) (int, bool) {
	idx, ok := g.nodeIndex[addr]
	return idx, ok
}

// GetEdge returns the aggregated edge for an ordered pair.
func (g *TransactionGraph) GetEdge(from, to string) (*Edge, bool) {
	e, ok := g.edgeIndex[[2]string{from, to}]
	return e, ok
}

// Successors returns addresses this node sends to, in edge insertion order.
func (g *TransactionGraph) Successors(addr string) []string {
	return g.outAdj[addr]
}

// Predecessors returns addresses this node receives from, in edge insertion order.
func (g *TransactionGraph) Predecessors(addr string) []string {
	return g.inAdj[addr]
}

// OutDegree counts distinct successors.
func (g *TransactionGraph) OutDegree(addr string) int {
	return len(g.outAdj[addr])
}

// InDegree counts distinct predecessors.
func (g *TransactionGraph) InDegree(addr string) int {
	return len(g.inAdj[addr])
}

// UndirectedNeighbors returns the union of successors and predecessors,
// deduplicated, preserving first-appearance order. This is the node's
// neighborhood on the undirected projection used for clustering
// coefficients and multi-hop traversal.
func (g *TransactionGraph) UndirectedNeighbors(addr string) []string {
	seen := make(map[string]bool)
	var neighbors []string
	for _, n := range g.outAdj[addr] {
		if n != addr && !seen[n] {
			seen[n] = true
			neighbors = append(neighbors, n)
		}
	}
	for _, n := range g.inAdj[addr] {
		if n != addr && !seen[n] {
			seen[n] = true
			neighbors = append(neighbors, n)
		}
	}
	return neighbors
}

// EdgeBetween returns the aggregated edge in either direction, preferring
// from->to. Used where flow direction does not matter.
func (g *TransactionGraph) EdgeBetween(a, b string) (*Edge, bool) {
	if e, ok := g.GetEdge(a, b); ok {
		return e, ok
	}
	return g.GetEdge(b, a)
}

// ShortestHops runs an unweighted BFS over outbound edges and returns the
// hop distance from source to target, or (0, false) when no path exists
// within maxHops.
func (g *TransactionGraph) ShortestHops(source, target string, maxHops int) (int, bool) {
	if !g.HasNode(source) || !g.HasNode(target) {
		return 0, false
	}
	if source == target {
		return 0, true
	}

	visited := map[string]bool{source: true}
	frontier := []string{source}

	for depth := 1; depth <= maxHops; depth++ {
		var next []string
		for _, node := range frontier {
			for _, succ := range g.outAdj[node] {
				if succ == target {
					return depth, true
				}
				if !visited[succ] {
					visited[succ] = true
					next = append(next, succ)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return 0, false
}
