package main

import (
	"context"
	"log"

	"github.com/rawblock/otc-engine/internal/api"
	"github.com/rawblock/otc-engine/internal/cache"
	"github.com/rawblock/otc-engine/internal/chain"
	"github.com/rawblock/otc-engine/internal/clustering"
	"github.com/rawblock/otc-engine/internal/config"
	"github.com/rawblock/otc-engine/internal/db"
	"github.com/rawblock/otc-engine/internal/detector"
	"github.com/rawblock/otc-engine/internal/discovery"
	"github.com/rawblock/otc-engine/internal/registry"
	"github.com/rawblock/otc-engine/internal/scanner"
	"github.com/rawblock/otc-engine/internal/tracing"
	"github.com/rawblock/otc-engine/internal/watch"
	"github.com/rawblock/otc-engine/pkg/models"
)

func main() {
	log.Println("Starting RawBlock OTC Detection Engine (Microservice: eth-otc-analytics)...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Known-entity registry, warm-started from persisted discoveries below
	reg := registry.NewStatic()
	seedRegistry(reg)

	var dbConn *db.PostgresStore
	if cfg.Database.URL != "" {
		dbConn, err = db.Connect(cfg.Database.URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persistence. Error: %v", err)
			dbConn = nil
		} else {
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
			if desks, err := dbConn.LoadAutoSavedDesks(ctx); err == nil {
				for _, desk := range desks {
					reg.AddDesk(desk)
				}
				if len(desks) > 0 {
					log.Printf("Warm-started registry with %d previously discovered desks", len(desks))
				}
			}
		}
	} else {
		log.Println("DATABASE_URL not set, running without persistence")
	}

	var cacheStore cache.Store = cache.NewNoop()
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis, running uncached. Error: %v", err)
		} else {
			defer redisCache.Close()
			cacheStore = redisCache
		}
	}

	var chainClient *chain.Ethereum
	if cfg.Chain.RPCURL != "" {
		chainClient, err = chain.NewEthereum(ctx, cfg.Chain.RPCURL, cfg.Chain.Name, nil)
		if err != nil {
			log.Printf("Warning: Failed to connect to chain RPC, scanning disabled. Error: %v", err)
			chainClient = nil
		} else {
			defer chainClient.Close()
		}
	}

	det := detector.New(detector.Config{
		OTCFloorUSD:  cfg.Detection.OTCFloorUSD,
		HighValueUSD: cfg.Detection.HighValueUSD,
	}, reg, reg)

	builderCfg := clustering.DefaultConfig()
	builderCfg.MultiHop.MaxHops = cfg.Detection.ClusterMaxHops
	builderCfg.SimilarityThreshold = cfg.Detection.ClusterThreshold
	builder := clustering.NewBuilder(builderCfg)

	scorer := discovery.NewScorer(reg)

	traceCfg := tracing.DefaultConfig()
	traceCfg.MaxHops = cfg.Detection.MaxTraceHops
	traceCfg.MinConfidence = cfg.Detection.MinConfidence

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Historical range scanner and head-of-chain watcher need a chain source
	var rangeScanner *scanner.RangeScanner
	if chainClient != nil {
		rangeScanner = scanner.NewRangeScanner(
			chainClient, det, dbConn, reg,
			api.BroadcastOTCAlert(wsHub),
			cfg.Scanner.MinScanUSD,
			uint64(cfg.Scanner.BatchSize),
		)

		watcher := watch.NewWatcher(chainClient, det, reg, wsHub, dbConn,
			cfg.Scanner.MinScanUSD, cfg.Scanner.PollInterval)
		go watcher.Run(ctx)
	}

	deps := api.Deps{
		Detector:     det,
		Builder:      builder,
		Scorer:       scorer,
		Registry:     reg,
		TraceConfig:  traceCfg,
		DB:           dbConn,
		Cache:        cacheStore,
		CacheTTL:     cfg.Redis.DetectionTTL,
		ProfileTTL:   cfg.Redis.ProfileTTL,
		Hub:          wsHub,
		RangeScanner: rangeScanner,
	}
	if chainClient != nil {
		deps.Chain = chainClient
	}
	r := api.SetupRouter(deps)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Engine running on %s (API Node: eth-otc-analytics)\n", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// seedRegistry loads the bootstrap desk set. Production deployments layer
// collaborator-supplied intelligence on top via the discovery pipeline and
// warm start.
func seedRegistry(reg *registry.Static) {
	for _, desk := range []models.DeskInfo{
		{Address: "0xe93685f3bba03016f02bd1828badd6195988d950", Name: "Cumberland", Confidence: 0.95, Chain: "ethereum"},
		{Address: "0x0000006daea1723962647b7e189d311d757fb793", Name: "Wintermute", Confidence: 0.95, Chain: "ethereum"},
		{Address: "0xf584f8728b874a6a5c7a8d4d387c9aae9172d621", Name: "Jump Trading", Confidence: 0.90, Chain: "ethereum"},
		{Address: "0x9c5083dd4838e120dbeac44c052179692aa5dac5", Name: "B2C2", Confidence: 0.85, Chain: "ethereum"},
		{Address: "0x18709e89bd403f470088abdacebe86cc60dda12e", Name: "Galaxy Digital", Confidence: 0.85, Chain: "ethereum"},
	} {
		reg.AddDesk(desk)
	}
	log.Printf("Seeded registry with %d known OTC desks", len(reg.Desks()))
}
