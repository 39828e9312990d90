package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Acquire takes a cooldown slot for key. It returns false plus the remaining
// cooldown when a prior acquisition is still live.
func (c *Client) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := c.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("acquire cooldown: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := c.TTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = ttl
	}
	return false, remaining, nil
}

func CooldownKey(kind, id string) string {
	return fmt.Sprintf("cooldown:%s:%s", kind, id)
}
