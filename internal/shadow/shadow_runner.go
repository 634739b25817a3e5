package shadow

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/otc-engine/internal/detector"
	"github.com/rawblock/otc-engine/pkg/models"
)

// Runner executes an experimental detector configuration in parallel
// against production data. No threshold change affects live verdicts
// immediately: candidate configurations run in shadow mode for an
// observation window and are promoted only after the drift report clears.
type Runner struct {
	pool       *pgxpool.Pool
	snapshotID int64
	production *detector.Detector
	experiment *detector.Detector
}

// Result captures the diff between the production and shadow verdicts
// for one transfer.
type Result struct {
	TxHash          string    `json:"txHash"`
	ProductionScore float64   `json:"productionScore"`
	ShadowScore     float64   `json:"shadowScore"`
	ProductionClass string    `json:"productionClass"`
	ShadowClass     string    `json:"shadowClass"`
	DeltaScore      float64   `json:"deltaScore"`
	SnapshotID      int64     `json:"snapshotId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewRunner builds a runner comparing the production detector against an
// experimental one. pool may be nil; results are then computed but not
// persisted.
func NewRunner(pool *pgxpool.Pool, snapshotID int64, production, experiment *detector.Detector) *Runner {
	return &Runner{
		pool:       pool,
		snapshotID: snapshotID,
		production: production,
		experiment: experiment,
	}
}

// RunShadowAnalysis scores one transfer with both detectors and persists
// the comparison to the shadow_results table, never to detections.
func (r *Runner) RunShadowAnalysis(ctx context.Context, tx models.TransactionRecord, profile *models.WalletProfile, history []models.TransactionRecord) (*Result, error) {
	prod, err := r.production.DetectTransaction(tx, profile, history)
	if err != nil {
		return nil, err
	}
	shadow, err := r.experiment.DetectTransaction(tx, profile, history)
	if err != nil {
		return nil, err
	}

	result := &Result{
		TxHash:          tx.Hash,
		ProductionScore: prod.TotalScore,
		ShadowScore:     shadow.TotalScore,
		ProductionClass: prod.Classification,
		ShadowClass:     shadow.Classification,
		DeltaScore:      shadow.TotalScore - prod.TotalScore,
		SnapshotID:      r.snapshotID,
		CreatedAt:       time.Now(),
	}

	// Log band flips for monitoring
	if result.ProductionClass != result.ShadowClass {
		log.Printf("[Shadow] DIVERGENCE on %s: prod=%s (%.1f) shadow=%s (%.1f)",
			tx.Hash, result.ProductionClass, result.ProductionScore,
			result.ShadowClass, result.ShadowScore)
	}

	if r.pool != nil {
		if err := r.persist(ctx, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// persist writes the shadow comparison to the database.
func (r *Runner) persist(ctx context.Context, result *Result) error {
	sql := `INSERT INTO shadow_results
		(tx_hash, production_score, shadow_score, production_class, shadow_class, delta_score, snapshot_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, sql,
		result.TxHash,
		result.ProductionScore,
		result.ShadowScore,
		result.ProductionClass,
		result.ShadowClass,
		result.DeltaScore,
		result.SnapshotID,
		result.CreatedAt,
	)
	return err
}

// BatchReport summarizes how far an experimental configuration drifts
// from production over one transaction set.
type BatchReport struct {
	SnapshotID  int64    `json:"snapshotId"`
	TotalRuns   int      `json:"totalRuns"`
	Divergences int      `json:"divergences"` // classification band flips
	AvgDelta    float64  `json:"avgDelta"`
	ARI         float64  `json:"adjustedRandIndex"`
	VI          float64  `json:"variationOfInformation"`
	Results     []Result `json:"results"`
}

// CompareBatch scores a transaction set with both detectors and reports
// the agreement of the resulting classification partitions. Comparisons
// are persisted per transfer when a pool is wired.
func (r *Runner) CompareBatch(ctx context.Context, txs []models.TransactionRecord, profiles map[string]*models.WalletProfile, histories map[string][]models.TransactionRecord) (*BatchReport, error) {
	prodResults, err := r.production.BatchDetect(txs, profiles, histories)
	if err != nil {
		return nil, err
	}
	shadowResults, err := r.experiment.BatchDetect(txs, profiles, histories)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{SnapshotID: r.snapshotID, TotalRuns: len(txs)}
	prodPart := make(map[string]int, len(txs))
	shadowPart := make(map[string]int, len(txs))

	var deltaSum float64
	now := time.Now()
	for i := range prodResults {
		prod, shadow := prodResults[i], shadowResults[i]
		result := Result{
			TxHash:          prod.TxHash,
			ProductionScore: prod.TotalScore,
			ShadowScore:     shadow.TotalScore,
			ProductionClass: prod.Classification,
			ShadowClass:     shadow.Classification,
			DeltaScore:      shadow.TotalScore - prod.TotalScore,
			SnapshotID:      r.snapshotID,
			CreatedAt:       now,
		}
		report.Results = append(report.Results, result)
		deltaSum += result.DeltaScore

		prodPart[prod.TxHash] = classIndex(prod.Classification)
		shadowPart[prod.TxHash] = classIndex(shadow.Classification)
		if prod.Classification != shadow.Classification {
			report.Divergences++
		}

		if r.pool != nil {
			if err := r.persist(ctx, &result); err != nil {
				return nil, err
			}
		}
	}
	if report.TotalRuns > 0 {
		report.AvgDelta = deltaSum / float64(report.TotalRuns)
	}

	eval := NewEvaluator()
	report.ARI = eval.AdjustedRandIndex(prodPart, shadowPart)
	report.VI = eval.VariationOfInformation(prodPart, shadowPart)
	return report, nil
}

// classIndex maps a classification band onto a partition label.
func classIndex(classification string) int {
	switch classification {
	case models.ClassificationHighConfidence:
		return 3
	case models.ClassificationMedium:
		return 2
	case models.ClassificationLow:
		return 1
	default:
		return 0
	}
}

// GenerateDriftReport computes the band-flip rate between shadow and
// production over all persisted results for this snapshot.
func (r *Runner) GenerateDriftReport(ctx context.Context) (totalRuns int, divergences int, avgDeltaScore float64, err error) {
	sql := `SELECT
		COUNT(*) as total,
		COUNT(*) FILTER (WHERE production_class != shadow_class) as divergences,
		COALESCE(AVG(delta_score), 0) as avg_delta
	FROM shadow_results WHERE snapshot_id = $1`

	row := r.pool.QueryRow(ctx, sql, r.snapshotID)
	err = row.Scan(&totalRuns, &divergences, &avgDeltaScore)
	return
}
