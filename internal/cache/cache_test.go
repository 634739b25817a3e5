package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/otc-engine/pkg/models"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return mr, store
}

func TestRedis_SetGetDelete(t *testing.T) {
	_, store := setupRedis(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	raw, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), raw)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_TTLExpiry(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectionRoundTrip(t *testing.T) {
	_, store := setupRedis(t)
	ctx := context.Background()

	result := &models.DetectionResult{
		TxHash:         "0xabc",
		TotalScore:     87.5,
		Classification: models.ClassificationHighConfidence,
	}
	require.NoError(t, PutDetection(ctx, store, "otc_detection:0xabc", result, time.Minute))

	got, ok, err := GetDetection(ctx, store, "otc_detection:0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.TxHash, got.TxHash)
	assert.Equal(t, result.TotalScore, got.TotalScore)
	assert.Equal(t, result.Classification, got.Classification)
}

func TestProfileRoundTrip(t *testing.T) {
	_, store := setupRedis(t)
	ctx := context.Background()

	profile := &models.WalletProfile{
		Address:         "0xwallet",
		TxCount:         42,
		AvgTxUSD:        250_000,
		ConfidenceScore: 0.42,
	}
	require.NoError(t, PutProfile(ctx, store, "wallet_profile:0xwallet", profile, time.Minute))

	got, ok, err := GetProfile(ctx, store, "wallet_profile:0xwallet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, profile.Address, got.Address)
	assert.Equal(t, profile.TxCount, got.TxCount)
	assert.Equal(t, profile.ConfidenceScore, got.ConfidenceScore)
}

func TestNoop(t *testing.T) {
	store := NewNoop()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "noop store never hits")
}
