package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5340", cfg.Server.Port)
	assert.Equal(t, float64(100_000), cfg.Detection.OTCFloorUSD)
	assert.Equal(t, float64(1_000_000), cfg.Detection.HighValueUSD)
	assert.Equal(t, 5, cfg.Detection.MaxTraceHops)
	assert.Equal(t, 3, cfg.Detection.ClusterMaxHops)
	assert.Equal(t, 0.7, cfg.Detection.ClusterThreshold)
	assert.Equal(t, time.Hour, cfg.Redis.DetectionTTL)
	assert.Equal(t, "ethereum", cfg.Chain.Name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OTC_FLOOR_USD", "250000")
	t.Setenv("DETECTION_CACHE_TTL", "15m")
	t.Setenv("TRACE_MAX_HOPS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, float64(250_000), cfg.Detection.OTCFloorUSD)
	assert.Equal(t, 15*time.Minute, cfg.Redis.DetectionTTL)
	assert.Equal(t, 4, cfg.Detection.MaxTraceHops)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SCANNER_BATCH_SIZE", "not-a-number")
	t.Setenv("SCANNER_POLL_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Scanner.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Scanner.PollInterval)
}

func TestLoad_InvalidThresholds(t *testing.T) {
	t.Setenv("HIGH_VALUE_USD", "50000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HIGH_VALUE_USD")
}
