package scanner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rawblock/otc-engine/internal/detector"
	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/pkg/models"
)

// fixtureSource replays a fixed transfer set for any requested window.
type fixtureSource struct {
	mu      sync.Mutex
	windows [][2]uint64
	txs     []models.TransactionRecord
	gate    chan struct{} // when non-nil, fetches block until closed
}

func (f *fixtureSource) FetchBlockRange(ctx context.Context, from, to uint64) ([]models.TransactionRecord, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.windows = append(f.windows, [2]uint64{from, to})
	f.mu.Unlock()
	return f.txs, nil
}

func (f *fixtureSource) callWindows() [][2]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][2]uint64, len(f.windows))
	copy(out, f.windows)
	return out
}

func usd(v float64) *float64 { return &v }

func waitForIdle(t *testing.T, s *RangeScanner) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !s.GetProgress().IsRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Expected scan to finish within 2s")
}

func TestScanRangeRejectsConcurrentScans(t *testing.T) {
	source := &fixtureSource{gate: make(chan struct{})}
	s := NewRangeScanner(source, detector.New(detector.DefaultConfig(), nil, nil), nil, nil, nil, 100_000, 10)

	if err := s.ScanRange(context.Background(), 1, 5); err != nil {
		t.Fatalf("Expected first scan to start. Got: %v", err)
	}
	err := s.ScanRange(context.Background(), 6, 10)
	if err == nil {
		t.Error("Expected second scan to be rejected while the first is running")
	} else if !strings.Contains(err.Error(), "in progress") {
		t.Errorf("Expected in-progress error. Got: %v", err)
	}

	close(source.gate)
	waitForIdle(t, s)

	if err := s.ScanRange(context.Background(), 6, 10); err != nil {
		t.Errorf("Expected a new scan to start after completion. Got: %v", err)
	}
	waitForIdle(t, s)
}

func TestScanRangeBatchWindows(t *testing.T) {
	base := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC) // Wednesday afternoon
	source := &fixtureSource{
		txs: []models.TransactionRecord{
			{Hash: "0xbig", FromAddress: "0xaaa", ToAddress: "0xbbb", Timestamp: base, USDValue: usd(150_000), TokenSymbol: "ETH"},
			{Hash: "0xdust", FromAddress: "0xccc", ToAddress: "0xddd", Timestamp: base, USDValue: usd(50_000), TokenSymbol: "ETH"},
		},
	}

	var mu sync.Mutex
	var alerts []OTCAlert
	alertFunc := func(a OTCAlert) {
		mu.Lock()
		alerts = append(alerts, a)
		mu.Unlock()
	}

	s := NewRangeScanner(source, detector.New(detector.DefaultConfig(), nil, nil), nil, nil, alertFunc, 100_000, 10)
	if err := s.ScanRange(context.Background(), 100, 125); err != nil {
		t.Fatalf("Expected scan to start. Got: %v", err)
	}
	waitForIdle(t, s)

	windows := source.callWindows()
	want := [][2]uint64{{100, 109}, {110, 119}, {120, 125}}
	if len(windows) != len(want) {
		t.Fatalf("Expected %d batch windows. Got: %v", len(want), windows)
	}
	for i, w := range want {
		if windows[i] != w {
			t.Errorf("Expected window %d to be %v. Got: %v", i, w, windows[i])
		}
	}

	progress := s.GetProgress()
	// One transfer clears the minimum per batch, three batches
	if progress.TotalScanned != 3 {
		t.Errorf("Expected 3 analyzed transfers. Got: %d", progress.TotalScanned)
	}
	if progress.CurrentBlock != 125 || progress.EndBlock != 125 {
		t.Errorf("Expected progress to end at block 125. Got: %+v", progress)
	}
	// A lone $150k weekday transfer between fresh wallets stays sub-threshold
	if progress.TotalSuspected != 0 || len(alerts) != 0 {
		t.Errorf("Expected no suspected transfers. Got: %d suspected, %d alerts", progress.TotalSuspected, len(alerts))
	}
}

func TestScanRangeEmitsAlertsForSuspectedTransfers(t *testing.T) {
	// Six $10M transfers from one whale to a known desk, every one on a
	// Saturday late evening. Size, profile, timing, and entity signals all
	// fire, so each lands in the suspected band.
	var txs []models.TransactionRecord
	start := time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC) // Saturday 23:00 UTC
	for i := 0; i < 6; i++ {
		txs = append(txs, models.TransactionRecord{
			Hash:        "0xwhale" + string(rune('a'+i)),
			FromAddress: "0xwhale",
			ToAddress:   "0xdesk",
			Timestamp:   start.AddDate(0, 0, 7*i),
			USDValue:    usd(10_000_000),
			TokenSymbol: "ETH",
		})
	}
	source := &fixtureSource{txs: txs}

	reg := registry.NewStatic()
	reg.AddDesk(models.DeskInfo{Address: "0xdesk", Name: "Cumberland", Confidence: 1.0})

	var mu sync.Mutex
	var alerts []OTCAlert
	alertFunc := func(a OTCAlert) {
		mu.Lock()
		alerts = append(alerts, a)
		mu.Unlock()
	}

	s := NewRangeScanner(source, detector.New(detector.DefaultConfig(), reg, reg), nil, reg, alertFunc, 100_000, 100)
	if err := s.ScanRange(context.Background(), 1, 50); err != nil {
		t.Fatalf("Expected scan to start. Got: %v", err)
	}
	waitForIdle(t, s)

	progress := s.GetProgress()
	if progress.TotalScanned != 6 {
		t.Errorf("Expected 6 analyzed transfers. Got: %d", progress.TotalScanned)
	}
	if progress.TotalSuspected != 6 {
		t.Errorf("Expected all 6 transfers suspected. Got: %d", progress.TotalSuspected)
	}
	if len(alerts) != 6 {
		t.Fatalf("Expected 6 alerts. Got: %d", len(alerts))
	}
	for _, a := range alerts {
		if a.Classification != models.ClassificationHighConfidence && a.Classification != models.ClassificationMedium {
			t.Errorf("Expected suspected-band classification for %s. Got: %s", a.TxHash, a.Classification)
		}
		if a.USDValue != 10_000_000 {
			t.Errorf("Expected alert value $10M. Got: %f", a.USDValue)
		}
		if a.FromAddress != "0xwhale" || a.ToAddress != "0xdesk" {
			t.Errorf("Expected whale->desk endpoints. Got: %s -> %s", a.FromAddress, a.ToAddress)
		}
	}
}

func TestScanRangeCancellation(t *testing.T) {
	source := &fixtureSource{gate: make(chan struct{})}
	s := NewRangeScanner(source, detector.New(detector.DefaultConfig(), nil, nil), nil, nil, nil, 100_000, 1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.ScanRange(ctx, 1, 1000); err != nil {
		t.Fatalf("Expected scan to start. Got: %v", err)
	}
	cancel()
	close(source.gate)
	waitForIdle(t, s)

	if got := len(source.callWindows()); got > 2 {
		t.Errorf("Expected cancellation to stop the scan early. Got: %d windows fetched", got)
	}
}
