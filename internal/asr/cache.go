package asr

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"lukechampine.com/blake3"
)

// ResultCache memoizes transcription results in Redis, keyed by a blake3
// content hash of the uploaded audio. Re-runs of the batch driver hit the
// cache instead of the engine for unchanged files. Cache failures are never
// fatal to a request.
type ResultCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, prefix string, ttl time.Duration) *ResultCache {
	if prefix == "" {
		prefix = "asr:"
	}
	return &ResultCache{client: client, prefix: prefix, ttl: ttl}
}

// ContentKey derives the cache key for an upload's raw bytes.
func ContentKey(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *ResultCache) Lookup(ctx context.Context, key string) (*Result, error) {
	vals, err := c.client.HGetAll(ctx, c.prefix+key).Result()
	if err != nil {
		return nil, err
	}
	text, ok := vals["text"]
	if !ok {
		return nil, nil
	}
	duration, err := strconv.ParseFloat(vals["duration"], 64)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Duration: duration}, nil
}

func (c *ResultCache) Store(ctx context.Context, key string, res Result) error {
	rk := c.prefix + key
	if err := c.client.HSet(ctx, rk,
		"text", res.Text,
		"duration", strconv.FormatFloat(res.Duration, 'f', -1, 64),
	).Err(); err != nil {
		return err
	}
	if c.ttl > 0 {
		return c.client.Expire(ctx, rk, c.ttl).Err()
	}
	return nil
}
