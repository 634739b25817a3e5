package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/otc-engine/internal/cache"
	"github.com/rawblock/otc-engine/internal/chain"
	"github.com/rawblock/otc-engine/internal/clustering"
	"github.com/rawblock/otc-engine/internal/db"
	"github.com/rawblock/otc-engine/internal/detector"
	"github.com/rawblock/otc-engine/internal/discovery"
	"github.com/rawblock/otc-engine/internal/graph"
	"github.com/rawblock/otc-engine/internal/profiler"
	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/internal/scanner"
	"github.com/rawblock/otc-engine/internal/shadow"
	"github.com/rawblock/otc-engine/internal/tracing"
	"github.com/rawblock/otc-engine/pkg/models"
)

// Handler wires the analysis core to the HTTP surface. Every collaborator
// except the detector is optional; absent ones degrade the matching
// endpoints to 503 or to uncached operation.
type Handler struct {
	det          *detector.Detector
	builder      *clustering.Builder
	scorer       *discovery.Scorer
	reg          *registry.Static
	traceCfg     tracing.Config
	dbStore      *db.PostgresStore
	cacheStore   cache.Store
	cacheTTL     time.Duration
	profileTTL   time.Duration
	chainFetcher chain.Fetcher
	wsHub        *Hub
	rangeScanner *scanner.RangeScanner

	invs *investigationManager
}

// historyFetchLimit caps the chain lookback when a request supplies no
// transaction history of its own.
const historyFetchLimit = 200

// Deps bundles the handler's collaborators.
type Deps struct {
	Detector     *detector.Detector
	Builder      *clustering.Builder
	Scorer       *discovery.Scorer
	Registry     *registry.Static
	TraceConfig  tracing.Config
	DB           *db.PostgresStore
	Cache        cache.Store
	CacheTTL     time.Duration
	ProfileTTL   time.Duration
	Chain        chain.Fetcher
	Hub          *Hub
	RangeScanner *scanner.RangeScanner
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://example.com,https://www.example.com
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Check if the request origin is in the allowed list
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	if deps.Registry == nil {
		deps.Registry = registry.NewStatic()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub()
		go deps.Hub.Run()
	}

	handler := &Handler{
		det:          deps.Detector,
		builder:      deps.Builder,
		scorer:       deps.Scorer,
		reg:          deps.Registry,
		traceCfg:     deps.TraceConfig,
		dbStore:      deps.DB,
		cacheStore:   deps.Cache,
		cacheTTL:     deps.CacheTTL,
		profileTTL:   deps.ProfileTTL,
		chainFetcher: deps.Chain,
		wsHub:        deps.Hub,
		rangeScanner: deps.RangeScanner,
		invs:         newInvestigationManager(),
	}
	if handler.cacheStore == nil {
		handler.cacheStore = cache.NewNoop()
	}

	api := r.Group("/api/v1")
	api.Use(NewRateLimiter(120, 30).Middleware())
	{
		// Public endpoints: health probing, the live stream, and scan progress
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", deps.Hub.Subscribe)
		api.GET("/scan/progress", handler.handleScanProgress)

		protected := api.Group("")
		protected.Use(AuthMiddleware())
		{
			protected.POST("/detect", handler.handleDetect)
			protected.POST("/detect/batch", handler.handleBatchDetect)
			protected.GET("/detections", handler.handleGetDetections)
			protected.POST("/trace", handler.handleTrace)
			protected.POST("/cluster", handler.handleCluster)
			protected.POST("/discovery/score", handler.handleDiscoveryScore)

			protected.POST("/investigation", handler.handleCreateInvestigation)
			protected.GET("/investigation/:id", handler.handleGetInvestigation)
			protected.POST("/investigation/:id/trace", handler.handleInvestigationTrace)

			// Historical block-range scanner
			protected.POST("/scan", handler.handleStartScan)

			// Shadow-mode configuration comparison
			protected.POST("/shadow/compare", handler.handleShadowCompare)
		}
	}

	return r
}

type detectRequest struct {
	Transaction models.TransactionRecord   `json:"transaction" binding:"required"`
	History     []models.TransactionRecord `json:"history"`
}

// handleDetect scores one transaction. Results are cached by transaction
// hash when a cache is wired.
func (h *Handler) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	key := detector.DetectionCacheKey(req.Transaction.Hash)
	if cached, ok, err := cache.GetDetection(c.Request.Context(), h.cacheStore, key); err == nil && ok {
		c.JSON(http.StatusOK, gin.H{"result": cached, "cached": true})
		return
	}

	history := h.historyFor(c.Request.Context(), req.Transaction.FromAddress, req.History)
	profile := h.walletProfile(c.Request.Context(), req.Transaction.FromAddress, history)
	result, err := h.det.DetectTransaction(req.Transaction, profile, history)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cache.PutDetection(c.Request.Context(), h.cacheStore, key, &result, h.cacheTTL); err != nil {
		log.Printf("Failed to cache detection %s: %v", req.Transaction.Hash, err)
	}
	if h.dbStore != nil {
		if err := h.dbStore.SaveDetection(c.Request.Context(), &result); err != nil {
			log.Printf("Failed to save detection to DB: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

type batchDetectRequest struct {
	Transactions []models.TransactionRecord `json:"transactions" binding:"required"`
	MinUSD       float64                    `json:"minUsd"`
}

// handleBatchDetect runs range scanning over a supplied transaction set:
// batch detection plus the volume and classification summary.
func (h *Handler) handleBatchDetect(c *gin.Context) {
	var req batchDetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	profiles := buildProfiles(req.Transactions, h.reg)
	summary, err := h.det.ScanRange(req.Transactions, req.MinUSD, profiles, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.dbStore != nil {
		for i := range summary.Results {
			if err := h.dbStore.SaveDetection(c.Request.Context(), &summary.Results[i]); err != nil {
				log.Printf("Failed to save detection to DB: %v", err)
			}
		}
	}

	c.JSON(http.StatusOK, summary)
}

// handleGetDetections pages stored detections.
func (h *Handler) handleGetDetections(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	minScore, _ := strconv.ParseFloat(c.DefaultQuery("minScore", "0"), 64)

	detections, totalCount, err := h.dbStore.GetDetections(c.Request.Context(), minScore, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch detections", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       detections,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

type traceRequest struct {
	Source        string                     `json:"source" binding:"required"`
	Target        string                     `json:"target" binding:"required"`
	Transactions  []models.TransactionRecord `json:"transactions" binding:"required"`
	MaxHops       int                        `json:"maxHops"`
	MinConfidence float64                    `json:"minConfidence"`
}

// handleTrace answers a point-to-point flow query over a supplied
// transaction set.
func (h *Handler) handleTrace(c *gin.Context) {
	var req traceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	cfg := h.traceCfg
	if req.MaxHops > 0 {
		cfg.MaxHops = req.MaxHops
	}
	if req.MinConfidence > 0 {
		cfg.MinConfidence = req.MinConfidence
	}

	tracer := tracing.NewTracer(graph.Build(req.Transactions), cfg)
	result, err := tracer.TraceFlow(req.Source, req.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type clusterRequest struct {
	Seeds        []string                   `json:"seeds" binding:"required"`
	Transactions []models.TransactionRecord `json:"transactions" binding:"required"`
}

// handleCluster builds an entity cluster around the seed addresses and
// reports entity-resolution output alongside it.
func (h *Handler) handleCluster(c *gin.Context) {
	var req clusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	g := graph.Build(req.Transactions)
	profiles := buildProfiles(req.Transactions, h.reg)

	cluster, err := h.builder.CreateCluster(g, req.Seeds, profiles)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entities := clustering.ResolveEntities(req.Transactions, profiles)

	if h.dbStore != nil {
		if err := h.dbStore.SaveCluster(c.Request.Context(), cluster); err != nil {
			log.Printf("Failed to save cluster to DB: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"cluster":  cluster,
		"entities": entities,
	})
}

type discoveryRequest struct {
	Address      string                     `json:"address" binding:"required"`
	SourceDesk   string                     `json:"sourceDesk"`
	Transactions []models.TransactionRecord `json:"transactions"`
}

// handleDiscoveryScore grades a newly observed wallet; AUTO_SAVE
// recommendations are promoted into the known-desk registry and
// broadcast to stream subscribers.
func (h *Handler) handleDiscoveryScore(c *gin.Context) {
	var req discoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	txs := h.historyFor(c.Request.Context(), req.Address, req.Transactions)
	profile := h.walletProfile(c.Request.Context(), req.Address, txs)
	score, err := h.scorer.ScoreWallet(req.Address, txs, profile, req.SourceDesk)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveDiscoveredWallet(c.Request.Context(), score); err != nil {
			log.Printf("Failed to save discovered wallet to DB: %v", err)
		}
	}
	if score.Recommendation == models.RecommendationAutoSave && h.reg != nil {
		h.reg.AddDesk(models.DeskInfo{
			Address:    score.Address,
			Name:       "discovered via " + score.SourceDesk,
			Confidence: score.TotalScore / 100,
		})
		if h.wsHub != nil {
			payload, _ := json.Marshal(gin.H{"type": "desk_discovered", "score": score})
			h.wsHub.Broadcast(payload)
		}
	}

	c.JSON(http.StatusOK, score)
}

// handleHealth returns engine status and capabilities for service discovery
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "RawBlock OTC Engine v1.0",
		"capabilities": gin.H{
			"batch_detection":   true,
			"range_scanning":    h.rangeScanner != nil,
			"flow_tracing":      true,
			"entity_resolution": true,
			"discovery_scoring": true,
			"shadow_mode":       true,
		},
		"dbConnected": h.dbStore != nil,
	})
}

// handleStartScan launches a historical block-range scan in the background.
// POST /api/v1/scan { "startBlock": 19000000, "endBlock": 19000100 }
func (h *Handler) handleStartScan(c *gin.Context) {
	if h.rangeScanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Range scanner not initialized"})
		return
	}

	var req struct {
		StartBlock uint64 `json:"startBlock"`
		EndBlock   uint64 `json:"endBlock"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {startBlock, endBlock}"})
		return
	}
	if req.StartBlock == 0 || req.EndBlock == 0 || req.StartBlock > req.EndBlock {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid block range"})
		return
	}

	if err := h.rangeScanner.ScanRange(context.Background(), req.StartBlock, req.EndBlock); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "scan_started",
		"startBlock":  req.StartBlock,
		"endBlock":    req.EndBlock,
		"totalBlocks": req.EndBlock - req.StartBlock + 1,
	})
}

// handleScanProgress returns the current progress of the range scanner.
func (h *Handler) handleScanProgress(c *gin.Context) {
	if h.rangeScanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Range scanner not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.rangeScanner.GetProgress())
}

type shadowCompareRequest struct {
	Transactions []models.TransactionRecord `json:"transactions" binding:"required"`
	OTCFloorUSD  float64                    `json:"otcFloorUsd"`
	HighValueUSD float64                    `json:"highValueUsd"`
}

// handleShadowCompare runs an experimental threshold configuration in
// parallel with production over the supplied set and reports the
// classification agreement.
func (h *Handler) handleShadowCompare(c *gin.Context) {
	var req shadowCompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	experiment := detector.New(detector.Config{
		OTCFloorUSD:  req.OTCFloorUSD,
		HighValueUSD: req.HighValueUSD,
	}, h.reg, h.reg)

	var pool *pgxpool.Pool
	if h.dbStore != nil {
		pool = h.dbStore.GetPool()
	}
	runner := shadow.NewRunner(pool, time.Now().UnixNano(), h.det, experiment)

	profiles := buildProfiles(req.Transactions, h.reg)
	report, err := runner.CompareBatch(c.Request.Context(), req.Transactions, profiles, groupByAddress(req.Transactions))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// BroadcastOTCAlert sends a suspected-OTC alert via the WebSocket hub.
// This is wired as the alertFunc callback for the RangeScanner.
func BroadcastOTCAlert(wsHub *Hub) func(scanner.OTCAlert) {
	return func(alert scanner.OTCAlert) {
		payload := gin.H{
			"type":  "otc_alert",
			"alert": alert,
		}
		alertBytes, _ := json.Marshal(payload)
		wsHub.Broadcast(alertBytes)
		log.Printf("[ALERT] %s OTC activity: %s ($%.0f, score %.1f)",
			alert.Classification, alert.TxHash, alert.USDValue, alert.TotalScore)
	}
}

// historyFor returns the supplied transaction history, falling back to
// the chain client when the request carries none. Chain failures degrade
// to the empty history rather than failing the request.
func (h *Handler) historyFor(ctx context.Context, address string, supplied []models.TransactionRecord) []models.TransactionRecord {
	if len(supplied) > 0 || h.chainFetcher == nil || address == "" {
		return supplied
	}
	txs, err := h.chainFetcher.FetchTransactions(ctx, address, historyFetchLimit)
	if err != nil {
		log.Printf("Failed to fetch history for %s: %v", address, err)
		return supplied
	}
	return txs
}

// walletProfile builds the address profile. Profiles built from real
// history refresh the profile cache; when no history is available the
// cached profile stands in for an empty one.
func (h *Handler) walletProfile(ctx context.Context, address string, history []models.TransactionRecord) *models.WalletProfile {
	key := detector.ProfileCacheKey(address)
	if len(history) == 0 {
		if cached, ok, err := cache.GetProfile(ctx, h.cacheStore, key); err == nil && ok {
			return cached
		}
	}
	profile := profiler.BuildProfile(address, history, h.reg)
	if len(history) > 0 {
		if err := cache.PutProfile(ctx, h.cacheStore, key, profile, h.profileTTL); err != nil {
			log.Printf("Failed to cache profile %s: %v", address, err)
		}
	}
	return profile
}

// buildProfiles derives a profile per address appearing in the set.
func buildProfiles(txs []models.TransactionRecord, labeler profiler.Labeler) map[string]*models.WalletProfile {
	profiles := make(map[string]*models.WalletProfile)
	for addr, history := range groupByAddress(txs) {
		profiles[addr] = profiler.BuildProfile(addr, history, labeler)
	}
	return profiles
}

// groupByAddress indexes a transaction set by every participating address.
func groupByAddress(txs []models.TransactionRecord) map[string][]models.TransactionRecord {
	byAddress := make(map[string][]models.TransactionRecord)
	for _, tx := range txs {
		byAddress[tx.FromAddress] = append(byAddress[tx.FromAddress], tx)
		if tx.ToAddress != "" && tx.ToAddress != tx.FromAddress {
			byAddress[tx.ToAddress] = append(byAddress[tx.ToAddress], tx)
		}
	}
	return byAddress
}
