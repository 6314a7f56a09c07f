package trigger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// AutoScrapeKey is the preference enabling the unsupervised mode
const AutoScrapeKey = "autoScrape"

// PreferenceStore is the settings storage shared with the user-facing toggle.
// The pipeline only reads from it.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value bool) error
}

// RedisPreferences keeps flags as fields of one Redis hash
type RedisPreferences struct {
	client  *redis.Client
	hashKey string
}

func NewRedisPreferences(client *redis.Client, hashKey string) *RedisPreferences {
	if hashKey == "" {
		hashKey = "relay:prefs"
	}
	return &RedisPreferences{client: client, hashKey: hashKey}
}

// Get returns false for a flag that was never set
func (p *RedisPreferences) Get(ctx context.Context, key string) (bool, error) {
	val, err := p.client.HGet(ctx, p.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis hget: %w", err)
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("preference %s: %w", key, err)
	}
	return b, nil
}

func (p *RedisPreferences) Set(ctx context.Context, key string, value bool) error {
	if err := p.client.HSet(ctx, p.hashKey, key, strconv.FormatBool(value)).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// MemoryPreferences is a process-local store, used when Redis is not configured
type MemoryPreferences struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewMemoryPreferences(initial map[string]bool) *MemoryPreferences {
	flags := make(map[string]bool, len(initial))
	for k, v := range initial {
		flags[k] = v
	}
	return &MemoryPreferences{flags: flags}
}

func (p *MemoryPreferences) Get(_ context.Context, key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flags[key], nil
}

func (p *MemoryPreferences) Set(_ context.Context, key string, value bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flags[key] = value
	return nil
}
