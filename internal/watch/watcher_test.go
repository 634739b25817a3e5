package watch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rawblock/otc-engine/internal/detector"
	"github.com/rawblock/otc-engine/pkg/models"
)

type fixtureHead struct {
	head    uint64
	txs     []models.TransactionRecord
	windows [][2]uint64
}

func (f *fixtureHead) Head(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fixtureHead) FetchBlockRange(ctx context.Context, from, to uint64) ([]models.TransactionRecord, error) {
	f.windows = append(f.windows, [2]uint64{from, to})
	return f.txs, nil
}

type recordingHub struct {
	messages [][]byte
}

func (r *recordingHub) Broadcast(message []byte) {
	r.messages = append(r.messages, message)
}

func usd(v float64) *float64 { return &v }

func TestTickStartsAtChainTip(t *testing.T) {
	base := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	source := &fixtureHead{
		head: 19_000_000,
		txs: []models.TransactionRecord{
			{Hash: "0x1", FromAddress: "0xaaa", ToAddress: "0xbbb", Timestamp: base, USDValue: usd(250_000), TokenSymbol: "ETH"},
		},
	}
	hub := &recordingHub{}
	w := NewWatcher(source, detector.New(detector.DefaultConfig(), nil, nil), nil, hub, nil, 100_000, time.Second)

	w.Tick(context.Background())

	if len(source.windows) != 1 {
		t.Fatalf("Expected one fetch. Got: %d", len(source.windows))
	}
	if source.windows[0] != [2]uint64{19_000_000, 19_000_000} {
		t.Errorf("Expected first tick to start at the tip. Got: %v", source.windows[0])
	}
	if len(hub.messages) != 1 {
		t.Fatalf("Expected one streamed verdict. Got: %d", len(hub.messages))
	}

	var payload StreamPayload
	if err := json.Unmarshal(hub.messages[0], &payload); err != nil {
		t.Fatalf("Expected a valid JSON payload. Got: %v", err)
	}
	if payload.Type != "live_detection" {
		t.Errorf("Expected live_detection payload. Got: %s", payload.Type)
	}
	if payload.TxHash != "0x1" || payload.USDValue != 250_000 {
		t.Errorf("Expected transfer facts in the payload. Got: %+v", payload)
	}
	if payload.Classification == "" {
		t.Error("Expected a classification on the streamed verdict")
	}
}

func TestTickSkipsWhenHeadUnchanged(t *testing.T) {
	source := &fixtureHead{head: 100}
	hub := &recordingHub{}
	w := NewWatcher(source, detector.New(detector.DefaultConfig(), nil, nil), nil, hub, nil, 100_000, time.Second)

	w.Tick(context.Background())
	w.Tick(context.Background())

	if len(source.windows) != 1 {
		t.Errorf("Expected no refetch while the head is unchanged. Got: %d fetches", len(source.windows))
	}
}

func TestTickDeduplicatesAcrossWindows(t *testing.T) {
	base := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	source := &fixtureHead{
		head: 100,
		txs: []models.TransactionRecord{
			{Hash: "0xrepeat", FromAddress: "0xaaa", ToAddress: "0xbbb", Timestamp: base, USDValue: usd(250_000), TokenSymbol: "ETH"},
		},
	}
	hub := &recordingHub{}
	w := NewWatcher(source, detector.New(detector.DefaultConfig(), nil, nil), nil, hub, nil, 100_000, time.Second)

	w.Tick(context.Background())
	source.head = 101 // same transfer reappears in the next window
	w.Tick(context.Background())

	if len(source.windows) != 2 {
		t.Fatalf("Expected two fetches. Got: %d", len(source.windows))
	}
	if source.windows[1] != [2]uint64{101, 101} {
		t.Errorf("Expected second window to resume after the first. Got: %v", source.windows[1])
	}
	if len(hub.messages) != 1 {
		t.Errorf("Expected the repeated transfer to stream once. Got: %d", len(hub.messages))
	}
}

func TestTickFiltersSubFloorTransfers(t *testing.T) {
	base := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	source := &fixtureHead{
		head: 100,
		txs: []models.TransactionRecord{
			{Hash: "0xdust", FromAddress: "0xaaa", ToAddress: "0xbbb", Timestamp: base, USDValue: usd(5_000), TokenSymbol: "ETH"},
		},
	}
	hub := &recordingHub{}
	w := NewWatcher(source, detector.New(detector.DefaultConfig(), nil, nil), nil, hub, nil, 100_000, time.Second)

	w.Tick(context.Background())

	if len(hub.messages) != 0 {
		t.Errorf("Expected sub-floor transfers to be dropped. Got: %d payloads", len(hub.messages))
	}
}
