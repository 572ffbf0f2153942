package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/subtext/internal/safety"
)

const keyPrefix = "subtext:flags:"

// FlagCache memoizes a FlagGenerator in Redis, keyed by the conversation
// content. Redis failures fall through to the wrapped generator.
type FlagCache struct {
	client redis.Cmdable
	inner  safety.FlagGenerator
	ttl    time.Duration
	logger *slog.Logger
}

func NewFlagCache(client redis.Cmdable, inner safety.FlagGenerator, ttl time.Duration, logger *slog.Logger) *FlagCache {
	return &FlagCache{client: client, inner: inner, ttl: ttl, logger: logger}
}

// GenerateSafetyFlags returns cached flags for an identical conversation or
// asks the wrapped generator. Generator errors are returned unchanged and
// never cached.
func (c *FlagCache) GenerateSafetyFlags(ctx context.Context, messages []safety.Message) ([]safety.RiskFlag, error) {
	key, err := Key(messages)
	if err != nil {
		return nil, err
	}

	flags, hit := c.get(ctx, key)
	if hit {
		c.logger.Debug("flag cache hit", "flags", len(flags))
		return flags, nil
	}

	flags, err = c.inner.GenerateSafetyFlags(ctx, messages)
	if err != nil {
		return nil, err
	}

	c.set(ctx, key, flags)
	return flags, nil
}

func (c *FlagCache) get(ctx context.Context, key string) ([]safety.RiskFlag, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("flag cache read failed", "error", err)
		return nil, false
	}

	var flags []safety.RiskFlag
	if err := json.Unmarshal(data, &flags); err != nil {
		c.logger.Warn("flag cache entry corrupt", "error", err)
		return nil, false
	}
	return flags, true
}

func (c *FlagCache) set(ctx context.Context, key string, flags []safety.RiskFlag) {
	if flags == nil {
		flags = []safety.RiskFlag{}
	}
	data, err := json.Marshal(flags)
	if err != nil {
		c.logger.Warn("flag cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("flag cache write failed", "error", err)
	}
}

type keyEntry struct {
	IsFromUser bool   `json:"u"`
	Sender     string `json:"s"`
	Text       string `json:"t"`
}

// Key derives the cache key for a conversation. Timestamps do not
// participate.
func Key(messages []safety.Message) (string, error) {
	entries := make([]keyEntry, len(messages))
	for i, m := range messages {
		entries[i] = keyEntry{IsFromUser: m.IsFromUser, Sender: m.Sender, Text: m.Text}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}
