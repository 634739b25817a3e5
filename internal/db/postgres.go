package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/otc-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for OTC Engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("OTC Detection Schema initialized")
	return nil
}

// SaveDetection upserts one detection result keyed by transaction hash.
func (s *PostgresStore) SaveDetection(ctx context.Context, result *models.DetectionResult) error {
	components, err := json.Marshal(result.ComponentScores)
	if err != nil {
		return fmt.Errorf("failed to encode component scores: %v", err)
	}

	sql := `
		INSERT INTO detections
			(tx_hash, total_score, classification, component_scores, matched_patterns,
			 involves_known_entity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			classification = EXCLUDED.classification,
			component_scores = EXCLUDED.component_scores,
			matched_patterns = EXCLUDED.matched_patterns,
			involves_known_entity = EXCLUDED.involves_known_entity,
			detected_at = NOW();
	`
	_, err = s.pool.Exec(ctx, sql,
		result.TxHash,
		result.TotalScore,
		result.Classification,
		components,
		result.MatchedPatterns,
		result.InvolvesKnownEntity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %v", err)
	}
	return nil
}

// GetDetections pages stored detections at or above a minimum score,
// newest first.
func (s *PostgresStore) GetDetections(ctx context.Context, minScore float64, page, limit int) ([]models.DetectionResult, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	countSQL := `SELECT COUNT(*) FROM detections WHERE total_score >= $1`
	if err := s.pool.QueryRow(ctx, countSQL, minScore).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	dataSQL := `
		SELECT tx_hash, total_score, classification, component_scores, matched_patterns,
		       involves_known_entity
		FROM detections
		WHERE total_score >= $1
		ORDER BY detected_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, dataSQL, minScore, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := make([]models.DetectionResult, 0)
	for rows.Next() {
		var r models.DetectionResult
		var components []byte
		if err := rows.Scan(&r.TxHash, &r.TotalScore, &r.Classification, &components,
			&r.MatchedPatterns, &r.InvolvesKnownEntity); err != nil {
			return nil, 0, err
		}
		if len(components) > 0 {
			if err := json.Unmarshal(components, &r.ComponentScores); err != nil {
				return nil, 0, fmt.Errorf("failed to decode component scores for %s: %v", r.TxHash, err)
			}
		}
		results = append(results, r)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return results, totalCount, nil
}

// SaveCluster upserts a cluster record. Members only ever grow, so the
// update keeps whichever member list is longer.
func (s *PostgresStore) SaveCluster(ctx context.Context, cluster *models.Cluster) error {
	sql := `
		INSERT INTO clusters
			(cluster_id, seed_addresses, member_addresses, topology_type, hub_addresses,
			 density, first_activity, last_activity, tx_count, total_volume_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (cluster_id) DO UPDATE SET
			member_addresses = CASE
				WHEN array_length(EXCLUDED.member_addresses, 1) >= array_length(clusters.member_addresses, 1)
				THEN EXCLUDED.member_addresses
				ELSE clusters.member_addresses
			END,
			topology_type = EXCLUDED.topology_type,
			hub_addresses = EXCLUDED.hub_addresses,
			density = EXCLUDED.density,
			first_activity = EXCLUDED.first_activity,
			last_activity = EXCLUDED.last_activity,
			tx_count = EXCLUDED.tx_count,
			total_volume_usd = EXCLUDED.total_volume_usd,
			updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql,
		cluster.ClusterID,
		cluster.SeedAddresses,
		cluster.MemberAddresses,
		cluster.TopologyType,
		cluster.HubAddresses,
		cluster.Density,
		cluster.FirstActivity,
		cluster.LastActivity,
		cluster.TxCount,
		cluster.TotalVolumeUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %v", err)
	}
	return nil
}

// GetCluster loads one cluster by id; (nil, nil) when absent.
func (s *PostgresStore) GetCluster(ctx context.Context, clusterID string) (*models.Cluster, error) {
	sql := `
		SELECT cluster_id, seed_addresses, member_addresses, topology_type, hub_addresses,
		       density, first_activity, last_activity, tx_count, total_volume_usd,
		       created_at, updated_at
		FROM clusters
		WHERE cluster_id = $1
	`
	var c models.Cluster
	err := s.pool.QueryRow(ctx, sql, clusterID).Scan(
		&c.ClusterID, &c.SeedAddresses, &c.MemberAddresses, &c.TopologyType, &c.HubAddresses,
		&c.Density, &c.FirstActivity, &c.LastActivity, &c.TxCount, &c.TotalVolumeUSD,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// SaveDiscoveredWallet upserts one discovery score.
func (s *PostgresStore) SaveDiscoveredWallet(ctx context.Context, score *models.DiscoveryScore) error {
	sql := `
		INSERT INTO discovered_wallets
			(address, source_desk, total_score, recommendation, otc_interaction_score,
			 volume_score, activity_score, network_score, known_otc_counterparties,
			 total_volume_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (address) DO UPDATE SET
			source_desk = EXCLUDED.source_desk,
			total_score = EXCLUDED.total_score,
			recommendation = EXCLUDED.recommendation,
			otc_interaction_score = EXCLUDED.otc_interaction_score,
			volume_score = EXCLUDED.volume_score,
			activity_score = EXCLUDED.activity_score,
			network_score = EXCLUDED.network_score,
			known_otc_counterparties = EXCLUDED.known_otc_counterparties,
			total_volume_usd = EXCLUDED.total_volume_usd,
			scored_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql,
		score.Address,
		score.SourceDesk,
		score.TotalScore,
		score.Recommendation,
		score.OTCInteractionScore,
		score.VolumeScore,
		score.ActivityScore,
		score.NetworkScore,
		score.KnownOTCCounterparties,
		score.TotalVolumeUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to insert discovered wallet: %v", err)
	}
	return nil
}

// LoadAutoSavedDesks loads discovered wallets promoted to the known-desk
// set, for warm-starting the registry on process boot.
func (s *PostgresStore) LoadAutoSavedDesks(ctx context.Context) ([]models.DeskInfo, error) {
	sql := `
		SELECT address, COALESCE(source_desk, ''), total_score
		FROM discovered_wallets
		WHERE recommendation = $1
		ORDER BY total_score DESC;
	`
	rows, err := s.pool.Query(ctx, sql, models.RecommendationAutoSave)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	desks := make([]models.DeskInfo, 0)
	for rows.Next() {
		var address, sourceDesk string
		var totalScore float64
		if err := rows.Scan(&address, &sourceDesk, &totalScore); err != nil {
			return nil, err
		}
		desks = append(desks, models.DeskInfo{
			Address:    address,
			Name:       "discovered via " + sourceDesk,
			Confidence: totalScore / 100,
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return desks, nil
}

// GetPool exposes the connection pool for the shadow runner and other subsystems
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
