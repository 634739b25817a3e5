package tracing

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rawblock/otc-engine/internal/graph"
	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/pkg/models"
)

func usd(v float64) *float64 { return &v }

func buildGraph(txs ...models.TransactionRecord) *graph.TransactionGraph {
	return graph.Build(txs)
}

func tx(hash, from, to string, value float64) models.TransactionRecord {
	return models.TransactionRecord{
		Hash:        hash,
		FromAddress: from,
		ToAddress:   to,
		Timestamp:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		USDValue:    usd(value),
	}
}

func TestTraceFlow_RankedPaths(t *testing.T) {
	// Direct route: one edge with 20 transfers totaling $20M. Indirect
	// route through 0xm: single $1M transfers.
	txs := []models.TransactionRecord{
		tx("0xi1", "0xs", "0xm", 1_000_000),
		tx("0xi2", "0xm", "0xt", 1_000_000),
	}
	for i := 0; i < 20; i++ {
		txs = append(txs, tx(fmt.Sprintf("0xd%d", i), "0xs", "0xt", 1_000_000))
	}
	tracer := NewTracer(buildGraph(txs...), DefaultConfig())

	result, err := tracer.TraceFlow("0xs", "0xt")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	if result.PathsFound != 2 {
		t.Fatalf("Expected 2 paths. Got: %v", result.PathsFound)
	}

	direct := result.Paths[0]
	if direct.HopCount != 1 {
		t.Errorf("Expected the direct path ranked first. Got: %v", direct.Addresses)
	}
	// Value and count terms saturate: 0.5 + 0.3 + 0.2*0.5.
	if math.Abs(direct.OverallConfidence-0.9) > 1e-9 {
		t.Errorf("Expected direct confidence 0.9. Got: %v", direct.OverallConfidence)
	}

	indirect := result.Paths[1]
	if indirect.HopCount != 2 {
		t.Errorf("Expected the 2-hop path ranked second. Got: %v", indirect.Addresses)
	}
	// 0.5*0.1 + 0.3*0.1 + 0.2*0.5 per segment, identical on both.
	if math.Abs(indirect.OverallConfidence-0.18) > 1e-9 {
		t.Errorf("Expected indirect confidence 0.18. Got: %v", indirect.OverallConfidence)
	}

	for _, p := range result.Paths {
		for _, seg := range p.Segments {
			if p.OverallConfidence > seg.Confidence {
				t.Errorf("Expected overall confidence bounded by segment %s->%s. Got: %v > %v",
					seg.FromAddress, seg.ToAddress, p.OverallConfidence, seg.Confidence)
			}
		}
	}
}

func TestTraceFlow_TieBrokenByHopCount(t *testing.T) {
	// All edges identical, so both paths share one confidence; the
	// shorter route must rank first.
	g := buildGraph(
		tx("0x1", "0xs", "0xt", 500_000),
		tx("0x2", "0xs", "0xm", 500_000),
		tx("0x3", "0xm", "0xt", 500_000),
	)
	tracer := NewTracer(g, DefaultConfig())

	result, err := tracer.TraceFlow("0xs", "0xt")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	if result.PathsFound != 2 {
		t.Fatalf("Expected 2 paths. Got: %v", result.PathsFound)
	}
	if result.Paths[0].HopCount != 1 || result.Paths[1].HopCount != 2 {
		t.Errorf("Expected hop counts 1 then 2. Got: %v then %v", result.Paths[0].HopCount, result.Paths[1].HopCount)
	}
}

func TestTraceFlow_MinConfidenceFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinConfidence = 0.5

	txs := []models.TransactionRecord{
		tx("0xi1", "0xs", "0xm", 1_000_000),
		tx("0xi2", "0xm", "0xt", 1_000_000),
	}
	for i := 0; i < 20; i++ {
		txs = append(txs, tx(fmt.Sprintf("0xd%d", i), "0xs", "0xt", 1_000_000))
	}
	tracer := NewTracer(buildGraph(txs...), cfg)

	result, err := tracer.TraceFlow("0xs", "0xt")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	if result.PathsFound != 1 {
		t.Fatalf("Expected only the high-confidence path. Got: %v", result.Paths)
	}
	if result.Paths[0].HopCount != 1 {
		t.Errorf("Expected the direct path. Got: %v", result.Paths[0].Addresses)
	}
}

func TestTraceFlow_HopBound(t *testing.T) {
	// A six-hop chain exceeds the default bound of five.
	var txs []models.TransactionRecord
	for i := 0; i < 6; i++ {
		txs = append(txs, tx(fmt.Sprintf("0x%d", i), fmt.Sprintf("0xn%d", i), fmt.Sprintf("0xn%d", i+1), 500_000))
	}
	tracer := NewTracer(buildGraph(txs...), DefaultConfig())

	result, err := tracer.TraceFlow("0xn0", "0xn6")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	if result.PathsFound != 0 {
		t.Errorf("Expected no paths beyond the hop bound. Got: %v", result.Paths)
	}

	within, err := tracer.TraceFlow("0xn0", "0xn5")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	if within.PathsFound != 1 || within.Paths[0].HopCount != 5 {
		t.Errorf("Expected one 5-hop path. Got: %v", within.Paths)
	}
}

func TestTraceFlow_PathCap(t *testing.T) {
	var txs []models.TransactionRecord
	for i := 0; i < 12; i++ {
		mid := fmt.Sprintf("0xmid%d", i)
		txs = append(txs,
			tx(fmt.Sprintf("0xa%d", i), "0xs", mid, 500_000),
			tx(fmt.Sprintf("0xb%d", i), mid, "0xt", 500_000),
		)
	}
	tracer := NewTracer(buildGraph(txs...), DefaultConfig())

	result, err := tracer.TraceFlow("0xs", "0xt")
	if err != nil {
		t.Fatalf("Expected no error. Got: %v", err)
	}
	if result.PathsFound != 10 {
		t.Errorf("Expected enumeration capped at 10 paths. Got: %v", result.PathsFound)
	}
}

func TestTraceFlow_AbsentNode(t *testing.T) {
	tracer := NewTracer(buildGraph(tx("0x1", "0xa", "0xb", 500_000)), DefaultConfig())

	result, err := tracer.TraceFlow("0xa", "0xghost")
	if err != nil {
		t.Fatalf("Expected no error for absent target. Got: %v", err)
	}
	if result.PathsFound != 0 {
		t.Errorf("Expected no paths. Got: %v", result.Paths)
	}
}

func TestTraceFlow_InvalidInput(t *testing.T) {
	tracer := NewTracer(graph.NewTransactionGraph(), DefaultConfig())
	if _, err := tracer.TraceFlow("", "0xt"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected invalid input error. Got: %v", err)
	}
}

func TestHopDistancesToDesks(t *testing.T) {
	g := buildGraph(
		tx("0x1", "0xa", "0xb", 500_000),
		tx("0x2", "0xb", "0xdesk1", 500_000),
		tx("0x3", "0xa", "0xdesk2", 500_000),
	)
	desks := registry.NewStatic()
	desks.AddDesk(models.DeskInfo{Address: "0xdesk1", Name: "Cumberland", Confidence: 0.95})
	desks.AddDesk(models.DeskInfo{Address: "0xdesk2", Name: "Wintermute", Confidence: 0.95})

	tracer := NewTracer(g, DefaultConfig())
	distances := tracer.HopDistancesToDesks("0xa", desks, []string{"0xdesk1", "0xdesk2", "0xunreachable"})

	if len(distances) != 2 {
		t.Fatalf("Expected 2 reachable desks. Got: %v", distances)
	}
	if distances[0].DeskAddress != "0xdesk2" || distances[0].Hops != 1 {
		t.Errorf("Expected 0xdesk2 at 1 hop first. Got: %v", distances[0])
	}
	if distances[1].DeskAddress != "0xdesk1" || distances[1].Hops != 2 {
		t.Errorf("Expected 0xdesk1 at 2 hops. Got: %v", distances[1])
	}
	if distances[0].DeskName != "Wintermute" {
		t.Errorf("Expected desk name Wintermute. Got: %v", distances[0].DeskName)
	}
}

func TestAnalyzeFlowPattern(t *testing.T) {
	var txs []models.TransactionRecord
	for i := 0; i < 11; i++ {
		txs = append(txs,
			tx(fmt.Sprintf("0xin%d", i), fmt.Sprintf("0xsrc%d", i), "0xhub", 500_000),
			tx(fmt.Sprintf("0xout%d", i), "0xhub", fmt.Sprintf("0xdst%d", i), 500_000),
			tx(fmt.Sprintf("0xfan%d", i), "0xfanout", fmt.Sprintf("0xleaf%d", i), 500_000),
		)
	}
	txs = append(txs, tx("0xiso", "0xlone", "0xother", 500_000))
	tracer := NewTracer(buildGraph(txs...), DefaultConfig())

	cases := []struct {
		address string
		want    string
	}{
		{"0xhub", PatternHub},
		{"0xfanout", PatternFanOut},
		{"0xlone", PatternIsolated},
		{"0xghost", PatternIsolated},
	}
	for _, c := range cases {
		if got := tracer.AnalyzeFlowPattern(c.address); got != c.want {
			t.Errorf("Expected %s pattern for %s. Got: %v", c.want, c.address, got)
		}
	}
}

func TestAnalyzeFlowPattern_FanIn(t *testing.T) {
	var txs []models.TransactionRecord
	for i := 0; i < 8; i++ {
		txs = append(txs, tx(fmt.Sprintf("0x%d", i), fmt.Sprintf("0xsrc%d", i), "0xsink", 500_000))
	}
	txs = append(txs, tx("0xo1", "0xsink", "0xdst", 500_000))
	tracer := NewTracer(buildGraph(txs...), DefaultConfig())

	if got := tracer.AnalyzeFlowPattern("0xsink"); got != PatternFanIn {
		t.Errorf("Expected fan_in pattern. Got: %v", got)
	}
}
