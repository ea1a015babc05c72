package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect accepts either a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string, dialTimeout time.Duration) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: redisURL}
	}
	if dialTimeout > 0 {
		opt.DialTimeout = dialTimeout
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// WebhookEventCache remembers processed gateway event ids so redeliveries can
// be answered without touching the database. The database record stays the
// source of truth; entries here only expire.
type WebhookEventCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewWebhookEventCache(client *redis.Client, ttl time.Duration) *WebhookEventCache {
	return &WebhookEventCache{client: client, ttl: ttl}
}

func webhookKey(eventID string) string {
	return "teevil:webhook:event:" + eventID
}

func (c *WebhookEventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, webhookKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *WebhookEventCache) Mark(ctx context.Context, eventID string) error {
	return c.client.Set(ctx, webhookKey(eventID), time.Now().UTC().Unix(), c.ttl).Err()
}
