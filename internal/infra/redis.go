package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = time.Second
)

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if !hasParam(url, "dial_timeout") {
		opt.DialTimeout = redisDialTimeout
	}
	if !hasParam(url, "read_timeout") {
		opt.ReadTimeout = redisIOTimeout
	}
	if !hasParam(url, "write_timeout") {
		opt.WriteTimeout = redisIOTimeout
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// hasParam reports whether a connection URL or DSN sets name explicitly.
func hasParam(url, name string) bool {
	return strings.Contains(url, name+"=")
}
