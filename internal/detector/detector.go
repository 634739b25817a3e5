package detector

import (
	"fmt"
	"strings"
	"time"

	"github.com/rawblock/otc-engine/internal/graph"
	"github.com/rawblock/otc-engine/internal/heuristics"
	"github.com/rawblock/otc-engine/internal/network"
	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/internal/scoring"
	"github.com/rawblock/otc-engine/pkg/models"
)

// OTC Detection Orchestrator
//
// Per-transaction pipeline, in order:
//
//   filtered -> known-entity lookup -> heuristic pass -> network pass
//            -> timing pass -> score -> classify
//
// The filter stage short-circuits everything: a transfer under the OTC
// floor is not worth a graph build. Batch mode constructs the graph once
// across all input plus historical transactions, so N detections cost one
// centrality computation instead of N.
//
// The detector holds no cache; it only exposes the deterministic key
// shapes an external cache collaborator should use.

// Config carries the detector thresholds.
type Config struct {
	OTCFloorUSD  float64
	HighValueUSD float64
}

// DefaultConfig mirrors production thresholds.
func DefaultConfig() Config {
	return Config{
		OTCFloorUSD:  heuristics.DefaultOTCFloorUSD,
		HighValueUSD: heuristics.DefaultHighValueUSD,
	}
}

// Detector wires the analysis stages to the registry collaborators.
type Detector struct {
	cfg       Config
	analyzer  *heuristics.Analyzer
	labeler   registry.Labeler
	desks     registry.DeskRegistry
}

// New builds a detector. labeler and desks may be nil; lookups then
// degrade to unknown-entity defaults.
func New(cfg Config, labeler registry.Labeler, desks registry.DeskRegistry) *Detector {
	if cfg.OTCFloorUSD <= 0 {
		cfg.OTCFloorUSD = heuristics.DefaultOTCFloorUSD
	}
	if cfg.HighValueUSD <= 0 {
		cfg.HighValueUSD = heuristics.DefaultHighValueUSD
	}
	return &Detector{
		cfg: cfg,
		analyzer: heuristics.NewAnalyzer(heuristics.Config{
			OTCFloorUSD:  cfg.OTCFloorUSD,
			HighValueUSD: cfg.HighValueUSD,
		}),
		labeler: labeler,
		desks:   desks,
	}
}

// DetectionCacheKey is the deterministic cache key for one detection.
func DetectionCacheKey(txHash string) string {
	return fmt.Sprintf("otc_detection:%s", txHash)
}

// ProfileCacheKey is the deterministic cache key for one wallet profile.
func ProfileCacheKey(address string) string {
	return fmt.Sprintf("wallet_profile:%s", strings.ToLower(address))
}

// DetectTransaction runs the full pipeline for a single transaction.
// history is the sender's transaction history, used both for the
// statistical size read and the single-shot graph build.
func (d *Detector) DetectTransaction(tx models.TransactionRecord, profile *models.WalletProfile, history []models.TransactionRecord) (models.DetectionResult, error) {
	if err := validateTx(tx); err != nil {
		return models.DetectionResult{}, err
	}

	if tx.USD() < d.cfg.OTCFloorUSD {
		return d.filteredResult(tx), nil
	}

	// One-shot graph over history plus the transaction under review
	g := graph.Build(append(append([]models.TransactionRecord{}, history...), tx))
	analyzer := network.NewAnalyzer(g)

	return d.detect(tx, profile, historyValues(tx, history), analyzer), nil
}

// BatchDetect scores every transaction against one shared graph built
// from the full input plus historical set. Profiles and histories are
// keyed by sender address.
func (d *Detector) BatchDetect(txs []models.TransactionRecord, profiles map[string]*models.WalletProfile, histories map[string][]models.TransactionRecord) ([]models.DetectionResult, error) {
	for _, tx := range txs {
		if err := validateTx(tx); err != nil {
			return nil, fmt.Errorf("batch rejected at %s: %w", tx.Hash, err)
		}
	}

	all := make([]models.TransactionRecord, 0, len(txs))
	all = append(all, txs...)
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		seen[tx.Hash] = true
	}
	for _, history := range histories {
		for _, tx := range history {
			if !seen[tx.Hash] {
				seen[tx.Hash] = true
				all = append(all, tx)
			}
		}
	}

	analyzer := network.NewAnalyzer(graph.Build(all))

	results := make([]models.DetectionResult, 0, len(txs))
	for _, tx := range txs {
		if tx.USD() < d.cfg.OTCFloorUSD {
			results = append(results, d.filteredResult(tx))
			continue
		}
		results = append(results, d.detect(tx, profiles[tx.FromAddress], historyValues(tx, histories[tx.FromAddress]), analyzer))
	}
	return results, nil
}

// ScanRange filters a raw transaction set by a minimum USD value, batch
// detects the remainder, and summarizes: suspected volume, a
// classification histogram, and wallets active in two or more suspected
// transfers.
func (d *Detector) ScanRange(txs []models.TransactionRecord, minUSD float64, profiles map[string]*models.WalletProfile, histories map[string][]models.TransactionRecord) (models.RangeSummary, error) {
	if minUSD < 0 {
		return models.RangeSummary{}, fmt.Errorf("%w: negative minimum value", models.ErrInvalidInput)
	}

	summary := models.RangeSummary{
		TotalTransactions: len(txs),
		ByClassification:  make(map[string]int),
		ActiveClusters:    make(map[string][]string),
	}

	var candidates []models.TransactionRecord
	for _, tx := range txs {
		if tx.USD() >= minUSD {
			candidates = append(candidates, tx)
		}
	}
	summary.AnalyzedCount = len(candidates)

	results, err := d.BatchDetect(candidates, profiles, histories)
	if err != nil {
		return models.RangeSummary{}, err
	}
	summary.Results = results

	walletHits := make(map[string][]string)
	for i, res := range results {
		summary.ByClassification[res.Classification]++
		if res.Classification == models.ClassificationNotOTC {
			continue
		}
		summary.SuspectedCount++
		summary.SuspectedVolumeUSD += candidates[i].USD()
		walletHits[candidates[i].FromAddress] = append(walletHits[candidates[i].FromAddress], res.TxHash)
		walletHits[candidates[i].ToAddress] = append(walletHits[candidates[i].ToAddress], res.TxHash)
	}
	for addr, hashes := range walletHits {
		if len(hashes) >= 2 {
			summary.ActiveClusters[addr] = hashes
		}
	}
	return summary, nil
}

// detect runs the post-filter stages against a prepared graph analyzer.
func (d *Detector) detect(tx models.TransactionRecord, profile *models.WalletProfile, historyUSD []float64, analyzer *network.Analyzer) models.DetectionResult {
	fromMatch := d.lookupEntity(tx.FromAddress)
	toMatch := d.lookupEntity(tx.ToAddress)

	heur := d.analyzer.Analyze(tx, profile, historyUSD)

	var netMetrics *models.NetworkMetrics
	if m, ok := analyzer.Metrics(tx.FromAddress); ok {
		netMetrics = &m
	}

	total, components := scoring.Score(scoring.Input{
		Tx:         tx,
		Profile:    profile,
		Network:    netMetrics,
		Timing:     heur.Timing,
		FromEntity: fromMatch,
		ToEntity:   toMatch,
	})

	patterns := heur.Patterns
	if netMetrics != nil && netMetrics.IsHub {
		patterns = append(patterns, "network_hub")
	}

	return models.DetectionResult{
		TxHash:              tx.Hash,
		TotalScore:          total,
		Classification:      models.ClassifyScore(total),
		ComponentScores:     components,
		MatchedPatterns:     patterns,
		InvolvesKnownEntity: fromMatch.IsOTCDesk || toMatch.IsOTCDesk,
		NetworkMetrics:      netMetrics,
		Timing:              heur.Timing.Snapshot(),
		AnalyzedAt:          time.Now().UTC(),
	}
}

// filteredResult is the short-circuit verdict for sub-floor transfers.
func (d *Detector) filteredResult(tx models.TransactionRecord) models.DetectionResult {
	return models.DetectionResult{
		TxHash:         tx.Hash,
		TotalScore:     0,
		Classification: models.ClassificationNotOTC,
		AnalyzedAt:     time.Now().UTC(),
	}
}

// lookupEntity consults the desk registry, degrading to a zero match when
// the collaborator is absent.
func (d *Detector) lookupEntity(address string) scoring.EntityMatch {
	if d.desks == nil {
		return scoring.EntityMatch{}
	}
	info, ok := d.desks.GetDeskInfo(address)
	if !ok {
		return scoring.EntityMatch{}
	}
	return scoring.EntityMatch{IsOTCDesk: true, Confidence: info.Confidence}
}

// historyValues extracts the comparison USD series, excluding the
// transaction under review.
func historyValues(tx models.TransactionRecord, history []models.TransactionRecord) []float64 {
	var values []float64
	for _, h := range history {
		if h.Hash == tx.Hash {
			continue
		}
		values = append(values, h.USD())
	}
	return values
}

// validateTx enforces the InvalidInput taxonomy before analysis.
func validateTx(tx models.TransactionRecord) error {
	if tx.Hash == "" {
		return fmt.Errorf("%w: empty transaction hash", models.ErrInvalidInput)
	}
	if tx.FromAddress == "" {
		return fmt.Errorf("%w: empty from address", models.ErrInvalidInput)
	}
	if tx.ToAddress == "" && !tx.ContractInteraction {
		return fmt.Errorf("%w: empty to address", models.ErrInvalidInput)
	}
	return nil
}
