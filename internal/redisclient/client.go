package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/record_view.lua
var recordViewScript string

// Hourly window for the view-rate counters behind the high_traffic heuristic.
const viewWindow = time.Hour

type Client struct {
	rdb        *redis.Client
	viewScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:        rdb,
		viewScript: redis.NewScript(recordViewScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func viewKey(productID int64, t time.Time) string {
	return fmt.Sprintf("views:%d:%s", productID, t.UTC().Format("2006010215"))
}

// RecordView atomically bumps the current hour's view counter for a product and
// returns the count so far in the window.
func (c *Client) RecordView(ctx context.Context, productID int64) (int64, error) {
	key := viewKey(productID, time.Now())

	result, err := c.viewScript.Run(ctx, c.rdb, []string{key}, int(viewWindow.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("record view script failed: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return count, nil
}

// GetViewCount reads the current hour's view counter for a product.
func (c *Client) GetViewCount(ctx context.Context, productID int64) (int64, error) {
	count, err := c.rdb.Get(ctx, viewKey(productID, time.Now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// CacheRecommendation stores a computed recommendation payload with TTL so hot
// products do not recompute on every request.
func (c *Client) CacheRecommendation(ctx context.Context, productID int64, payload interface{}, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("recommend:%d", productID), data, ttl).Err()
}

// GetCachedRecommendation loads a cached recommendation into dest. Returns
// false when there is no fresh entry.
func (c *Client) GetCachedRecommendation(ctx context.Context, productID int64, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("recommend:%d", productID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

// InvalidateRecommendation drops the cached recommendation after a price change.
func (c *Client) InvalidateRecommendation(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("recommend:%d", productID)).Err()
}

// CacheInventory stores an inventory snapshot with TTL, the fast path for the
// surge stock heuristic.
func (c *Client) CacheInventory(ctx context.Context, productID int64, payload interface{}, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("inventory:%d", productID), data, ttl).Err()
}

// GetCachedInventory loads a cached inventory snapshot into dest. Returns
// false when there is no fresh entry.
func (c *Client) GetCachedInventory(ctx context.Context, productID int64, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("inventory:%d", productID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

// AcquireLock acquires a distributed lock, used by the background sweeps so
// multiple instances don't double-run a pass. The lock is held for the full
// TTL; the holder never releases early, so a sweep runs at most once per tick.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}
