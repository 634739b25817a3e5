package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Redis backs the Store port with a go-redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis connects and pings; an unreachable server is reported here so
// the caller can decide to fall back to the noop store.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// GetDetection loads a cached DetectionResult, (nil, false, nil) on miss.
func GetDetection(ctx context.Context, store Store, key string) (*models.DetectionResult, bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var result models.DetectionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached detection %s: %w", key, err)
	}
	return &result, true, nil
}

// PutDetection stores a DetectionResult under its deterministic key.
func PutDetection(ctx context.Context, store Store, key string, result *models.DetectionResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode detection %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}

// GetProfile loads a cached WalletProfile, (nil, false, nil) on miss.
func GetProfile(ctx context.Context, store Store, key string) (*models.WalletProfile, bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var profile models.WalletProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, false, fmt.Errorf("decode cached profile %s: %w", key, err)
	}
	return &profile, true, nil
}

// PutProfile stores a WalletProfile under its deterministic key.
func PutProfile(ctx context.Context, store Store, key string, profile *models.WalletProfile, ttl time.Duration) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", key, err)
	}
	return store.Set(ctx, key, raw, ttl)
}
