// Package config loads engine configuration from environment variables
// and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Chain     ChainConfig
	Detection DetectionConfig
	Scanner   ScannerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds Postgres configuration. URL may be empty, in which
// case persistence is disabled and results are served from memory only.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds result-cache configuration. Addr may be empty, in
// which case the engine runs with the noop cache.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DetectionTTL time.Duration
	ProfileTTL   time.Duration
}

// ChainConfig holds the blockchain-data collaborator configuration.
type ChainConfig struct {
	RPCURL     string
	Name       string
	FetchLimit int
}

// DetectionConfig holds the engine thresholds.
type DetectionConfig struct {
	OTCFloorUSD      float64
	HighValueUSD     float64
	MinConfidence    float64
	MaxTraceHops     int
	ClusterMaxHops   int
	ClusterThreshold float64
}

// ScannerConfig holds block-range scanner configuration.
type ScannerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MinScanUSD   float64
}

// Load reads configuration from the environment, honoring a .env file
// when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "5340"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			DetectionTTL: getEnvAsDuration("DETECTION_CACHE_TTL", time.Hour),
			ProfileTTL:   getEnvAsDuration("PROFILE_CACHE_TTL", 6*time.Hour),
		},
		Chain: ChainConfig{
			RPCURL:     getEnv("ETH_RPC_URL", ""),
			Name:       getEnv("CHAIN_NAME", "ethereum"),
			FetchLimit: getEnvAsInt("CHAIN_FETCH_LIMIT", 500),
		},
		Detection: DetectionConfig{
			OTCFloorUSD:      getEnvAsFloat("OTC_FLOOR_USD", 100_000),
			HighValueUSD:     getEnvAsFloat("HIGH_VALUE_USD", 1_000_000),
			MinConfidence:    getEnvAsFloat("TRACE_MIN_CONFIDENCE", 0),
			MaxTraceHops:     getEnvAsInt("TRACE_MAX_HOPS", 5),
			ClusterMaxHops:   getEnvAsInt("CLUSTER_MAX_HOPS", 3),
			ClusterThreshold: getEnvAsFloat("CLUSTER_SIMILARITY_THRESHOLD", 0.7),
		},
		Scanner: ScannerConfig{
			BatchSize:    getEnvAsInt("SCANNER_BATCH_SIZE", 200),
			PollInterval: getEnvAsDuration("SCANNER_POLL_INTERVAL", 30*time.Second),
			MinScanUSD:   getEnvAsFloat("SCANNER_MIN_USD", 100_000),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Detection.OTCFloorUSD <= 0 {
		return fmt.Errorf("OTC_FLOOR_USD must be positive, got %v", c.Detection.OTCFloorUSD)
	}
	if c.Detection.HighValueUSD < c.Detection.OTCFloorUSD {
		return fmt.Errorf("HIGH_VALUE_USD %v must not be below OTC_FLOOR_USD %v",
			c.Detection.HighValueUSD, c.Detection.OTCFloorUSD)
	}
	if c.Detection.MaxTraceHops <= 0 || c.Detection.ClusterMaxHops <= 0 {
		return fmt.Errorf("hop bounds must be positive")
	}
	return nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as a float with a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
