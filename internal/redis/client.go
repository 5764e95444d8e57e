package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"order_composer/internal/models"
)

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrCacheMiss     = errors.New("cache miss")
)

const (
	draftPrefix   = "draft:"
	catalogPrefix = "catalog:"
	lockPrefix    = "lock:submit:"
)

type Client struct {
	rdb *redis.Client
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func NewClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Draft storage
func (c *Client) SaveDraft(ctx context.Context, draft *models.OrderDraft, ttl time.Duration) error {
	jsonData, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	return c.rdb.Set(ctx, draftPrefix+draft.ID, jsonData, ttl).Err()
}

func (c *Client) GetDraft(ctx context.Context, draftID string) (*models.OrderDraft, error) {
	val, err := c.rdb.Get(ctx, draftPrefix+draftID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	var draft models.OrderDraft
	if err := json.Unmarshal(val, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}

	return &draft, nil
}

func (c *Client) DeleteDraft(ctx context.Context, draftID string) error {
	return c.rdb.Del(ctx, draftPrefix+draftID).Err()
}

// Catalog cache
func (c *Client) SetCatalog(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog data: %w", err)
	}

	return c.rdb.Set(ctx, catalogPrefix+key, jsonData, ttl).Err()
}

func (c *Client) GetCatalog(ctx context.Context, key string, dest interface{}) error {
	val, err := c.rdb.Get(ctx, catalogPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get catalog data: %w", err)
	}

	return json.Unmarshal(val, dest)
}

func (c *Client) InvalidateCatalog(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = catalogPrefix + k
	}
	return c.rdb.Del(ctx, prefixed...).Err()
}

// Submission lock. The holder token guards the release so an expired lock
// taken over by another request is not released by the first one.
func (c *Client) AcquireSubmitLock(ctx context.Context, draftID, holder string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockPrefix+draftID, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire submit lock: %w", err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (c *Client) ReleaseSubmitLock(ctx context.Context, draftID, holder string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{lockPrefix + draftID}, holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release submit lock: %w", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
