package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yyyoichi/watermark_svd/internal/config"
)

// Entry is a cached embed response.
type Entry struct {
	EmbedID string `json:"embed_id"`
	// PSNR is the X-PSNR-DB header value.
	PSNR string `json:"psnr_db"`
	PNG  []byte `json:"png"`
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg *config.RedisConfig) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Key identifies an embed of host under the fixed parameters params.
func Key(params string, host []byte) string {
	h := sha256.New()
	h.Write([]byte(params))
	h.Write([]byte{0})
	h.Write(host)
	return "embed:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry at key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Cache) Set(ctx context.Context, key string, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
