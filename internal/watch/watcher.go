package watch

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/rawblock/otc-engine/internal/db"
	"github.com/rawblock/otc-engine/internal/detector"
	"github.com/rawblock/otc-engine/internal/profiler"
	"github.com/rawblock/otc-engine/pkg/models"
)

// HeadSource exposes the chain-tip reads the watcher needs.
// chain.Ethereum satisfies it.
type HeadSource interface {
	Head(ctx context.Context) (uint64, error)
	FetchBlockRange(ctx context.Context, from, to uint64) ([]models.TransactionRecord, error)
}

// Broadcaster fans a payload out to connected stream clients.
// api.Hub satisfies it.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Watcher follows the chain head and runs live detection over every new
// confirmed block, streaming verdicts to dashboard clients and persisting
// suspected-OTC transfers.
type Watcher struct {
	source   HeadSource
	det      *detector.Detector
	labeler  profiler.Labeler
	hub      Broadcaster
	dbStore  *db.PostgresStore
	minUSD   float64
	interval time.Duration

	lastBlock uint64
	seenTxs   map[string]bool
}

// StreamPayload is the per-transfer verdict sent to the dashboard UI.
type StreamPayload struct {
	Type             string   `json:"type"`
	TxHash           string   `json:"txHash"`
	FromAddress      string   `json:"fromAddress"`
	ToAddress        string   `json:"toAddress"`
	USDValue         float64  `json:"usdValue"`
	TokenSymbol      string   `json:"tokenSymbol"`
	TotalScore       float64  `json:"totalScore"`
	Classification   string   `json:"classification"`
	MatchedPatterns  []string `json:"matchedPatterns,omitempty"`
	KnownEntity      bool     `json:"knownEntity"`
	ProcessingTimeMs float64  `json:"processingTimeMs"`
}

func NewWatcher(source HeadSource, det *detector.Detector, labeler profiler.Labeler, hub Broadcaster, dbStore *db.PostgresStore, minUSD float64, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		source:   source,
		det:      det,
		labeler:  labeler,
		hub:      hub,
		dbStore:  dbStore,
		minUSD:   minUSD,
		interval: interval,
		seenTxs:  make(map[string]bool),
	}
}

// Run polls the chain head until the context is cancelled. Each new block
// window is analyzed exactly once; the seen set resets hourly to bound
// memory.
func (w *Watcher) Run(ctx context.Context) {
	log.Println("[Watcher] Starting head-of-chain OTC watcher...")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Watcher] Stopping head-of-chain watcher...")
			return
		case <-cleanupTicker.C:
			w.seenTxs = make(map[string]bool)
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick processes every block confirmed since the previous tick.
func (w *Watcher) Tick(ctx context.Context) {
	head, err := w.source.Head(ctx)
	if err != nil {
		log.Printf("[Watcher] Error reading chain head: %v", err)
		return
	}
	if head <= w.lastBlock {
		return
	}

	from := w.lastBlock + 1
	if w.lastBlock == 0 {
		from = head // first tick starts at the tip, no backfill
	}
	w.lastBlock = head

	txs, err := w.source.FetchBlockRange(ctx, from, head)
	if err != nil {
		log.Printf("[Watcher] Error fetching blocks %d-%d: %v", from, head, err)
		return
	}

	fresh := txs[:0:0]
	for _, tx := range txs {
		if w.seenTxs[tx.Hash] {
			continue
		}
		w.seenTxs[tx.Hash] = true
		fresh = append(fresh, tx)
	}
	if len(fresh) == 0 {
		return
	}

	byHash := make(map[string]models.TransactionRecord, len(fresh))
	histories := make(map[string][]models.TransactionRecord)
	for _, tx := range fresh {
		byHash[tx.Hash] = tx
		histories[tx.FromAddress] = append(histories[tx.FromAddress], tx)
		if tx.ToAddress != "" && tx.ToAddress != tx.FromAddress {
			histories[tx.ToAddress] = append(histories[tx.ToAddress], tx)
		}
	}
	profiles := make(map[string]*models.WalletProfile, len(histories))
	for address, history := range histories {
		profiles[address] = profiler.BuildProfile(address, history, w.labeler)
	}

	start := time.Now()
	summary, err := w.det.ScanRange(fresh, w.minUSD, profiles, histories)
	if err != nil {
		log.Printf("[Watcher] Detection error on blocks %d-%d: %v", from, head, err)
		return
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	for _, result := range summary.Results {
		tx := byHash[result.TxHash]

		suspected := result.Classification == models.ClassificationHighConfidence ||
			result.Classification == models.ClassificationMedium
		if suspected && w.dbStore != nil {
			r := result
			if err := w.dbStore.SaveDetection(ctx, &r); err != nil {
				log.Printf("[Watcher] Failed to persist detection %s: %v", result.TxHash, err)
			} else {
				log.Printf("[Watcher] Suspected OTC transfer persisted: %s (score %.1f, $%.0f)",
					result.TxHash, result.TotalScore, tx.USD())
			}
		}

		if w.hub == nil {
			continue
		}
		payload := StreamPayload{
			Type:             "live_detection",
			TxHash:           result.TxHash,
			FromAddress:      tx.FromAddress,
			ToAddress:        tx.ToAddress,
			USDValue:         tx.USD(),
			TokenSymbol:      tx.TokenSymbol,
			TotalScore:       result.TotalScore,
			Classification:   result.Classification,
			MatchedPatterns:  result.MatchedPatterns,
			KnownEntity:      result.InvolvesKnownEntity,
			ProcessingTimeMs: elapsed,
		}
		payloadBytes, _ := json.Marshal(payload)
		w.hub.Broadcast(payloadBytes)
	}
}
