// Package tracing answers point-to-point flow queries on the transaction
// graph: which routes connect a source address to a target, how much
// moved along them, and how trustworthy each route is.
//
// Path confidence is built segment by segment from edge value and edge
// transaction count, then collapsed with the weakest-link rule: a path is
// only as credible as its least credible hop. Enumeration is bounded to
// keep cost predictable on dense graphs.
package tracing

import (
	"fmt"
	"sort"

	"github.com/rawblock/otc-engine/internal/graph"
	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/pkg/models"
)

const (
	maxPathsCollected  = 10
	valueSaturationUSD = 10_000_000
	countSaturation    = 10
)

// Flow pattern classifications for a single address.
const (
	PatternHub      = "hub"
	PatternFanOut   = "fan_out"
	PatternFanIn    = "fan_in"
	PatternIsolated = "isolated"
	PatternBalanced = "balanced"
)

// Config bounds the search. RecencyConfidence is the placeholder third
// term of segment confidence until edge timestamps feed a real decay.
type Config struct {
	MaxHops           int
	MinConfidence     float64
	RecencyConfidence float64
}

func DefaultConfig() Config {
	return Config{
		MaxHops:           5,
		MinConfidence:     0,
		RecencyConfidence: 0.5,
	}
}

// Tracer performs path search on a built graph.
type Tracer struct {
	g   *graph.TransactionGraph
	cfg Config
}

func NewTracer(g *graph.TransactionGraph, cfg Config) *Tracer {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultConfig().MaxHops
	}
	return &Tracer{g: g, cfg: cfg}
}

// TraceFlow enumerates up to 10 simple paths from source to target along
// directed edges, scores each, drops those below MinConfidence, and ranks
// the survivors by confidence descending, hop count ascending.
func (t *Tracer) TraceFlow(source, target string) (*models.FlowResult, error) {
	if source == "" || target == "" {
		return nil, fmt.Errorf("trace flow: %w: source and target are required", models.ErrInvalidInput)
	}

	result := &models.FlowResult{
		Source:      source,
		Target:      target,
		FlowPattern: t.AnalyzeFlowPattern(source),
	}
	if !t.g.HasNode(source) || !t.g.HasNode(target) {
		return result, nil
	}

	var paths []models.FlowPath
	visited := map[string]bool{source: true}
	t.dfsPaths(source, target, []string{source}, visited, &paths)

	kept := paths[:0]
	for _, p := range paths {
		if p.OverallConfidence >= t.cfg.MinConfidence {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].OverallConfidence != kept[j].OverallConfidence {
			return kept[i].OverallConfidence > kept[j].OverallConfidence
		}
		return kept[i].HopCount < kept[j].HopCount
	})

	result.Paths = kept
	result.PathsFound = len(kept)
	return result, nil
}

// dfsPaths walks simple directed paths up to the hop bound, stopping once
// the collection cap is reached.
func (t *Tracer) dfsPaths(current, target string, path []string, visited map[string]bool, out *[]models.FlowPath) {
	if len(*out) >= maxPathsCollected {
		return
	}
	if current == target && len(path) > 1 {
		*out = append(*out, t.scorePath(path))
		return
	}
	if len(path) > t.cfg.MaxHops {
		return
	}
	for _, next := range t.g.Successors(current) {
		if visited[next] {
			continue
		}
		visited[next] = true
		t.dfsPaths(next, target, append(path, next), visited, out)
		visited[next] = false
	}
}

// scorePath builds the segment records for one address sequence and
// applies the weakest-link rule.
func (t *Tracer) scorePath(addresses []string) models.FlowPath {
	path := models.FlowPath{
		Addresses:         append([]string{}, addresses...),
		HopCount:          len(addresses) - 1,
		OverallConfidence: 1.0,
	}
	for i := 0; i < len(addresses)-1; i++ {
		edge, ok := t.g.GetEdge(addresses[i], addresses[i+1])
		if !ok {
			continue
		}
		seg := models.FlowSegment{
			FromAddress: edge.From,
			ToAddress:   edge.To,
			TxCount:     edge.Weight,
			TotalValue:  edge.TotalValue,
			Confidence:  t.segmentConfidence(edge),
		}
		path.Segments = append(path.Segments, seg)
		if seg.Confidence < path.OverallConfidence {
			path.OverallConfidence = seg.Confidence
		}
	}
	return path
}

// segmentConfidence blends value, transaction count and the recency
// placeholder at 0.5/0.3/0.2.
func (t *Tracer) segmentConfidence(edge *graph.Edge) float64 {
	value := edge.TotalValue / valueSaturationUSD
	if value > 1 {
		value = 1
	}
	count := float64(edge.Weight) / countSaturation
	if count > 1 {
		count = 1
	}
	return 0.5*value + 0.3*count + 0.2*t.cfg.RecencyConfidence
}

// HopDistancesToDesks reports, for each known desk reachable within the
// hop bound, the minimum undirected hop count from the address. Sorted
// nearest first, ties by desk address.
func (t *Tracer) HopDistancesToDesks(address string, desks registry.DeskRegistry, deskAddresses []string) []models.DeskDistance {
	var distances []models.DeskDistance
	for _, desk := range deskAddresses {
		if desk == address {
			continue
		}
		hops, ok := t.g.ShortestHops(address, desk, t.cfg.MaxHops)
		if !ok {
			continue
		}
		d := models.DeskDistance{DeskAddress: desk, Hops: hops}
		if desks != nil {
			if info, ok := desks.GetDeskInfo(desk); ok {
				d.DeskName = info.Name
			}
		}
		distances = append(distances, d)
	}
	sort.Slice(distances, func(i, j int) bool {
		if distances[i].Hops != distances[j].Hops {
			return distances[i].Hops < distances[j].Hops
		}
		return distances[i].DeskAddress < distances[j].DeskAddress
	})
	return distances
}

// AnalyzeFlowPattern classifies an address by its degree signature.
func (t *Tracer) AnalyzeFlowPattern(address string) string {
	in := t.g.InDegree(address)
	out := t.g.OutDegree(address)

	switch {
	case in > 10 && out > 10:
		return PatternHub
	case out > 2*in && out > 5:
		return PatternFanOut
	case in > 2*out && in > 5:
		return PatternFanIn
	case in < 3 && out < 3:
		return PatternIsolated
	default:
		return PatternBalanced
	}
}
