package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

// NewClient connects to the shared counter and pub/sub store. A failed ping
// returns the client alongside the error: go-redis reconnects on its own, so
// callers can degrade (e.g. fall back to in-process rate limiting) instead of
// exiting. Only an unparseable URL yields a nil client.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := &Client{redis.NewClient(opts)}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return client, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// UserChannel is the pub/sub channel carrying pairing notifications for a user.
func UserChannel(userID string) string {
	return fmt.Sprintf("pairing:user:%s", userID)
}
