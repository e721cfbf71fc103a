package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// Client wraps the go-redis client shared by the reconcile queue and lifecycle pub/sub.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// Options builds go-redis options. Read timeouts are disabled so BLPOP in the worker can
// block until a job arrives or its context is cancelled.
func Options(addr, password string, db int) *redis.Options {
	return &redis.Options{
		Addr:                  addr,
		Password:              password,
		DB:                    db,
		ReadTimeout:           -1,
		ContextTimeoutEnabled: true,
	}
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(Options(addr, password, db))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", addr), zap.Int("db", db))
	return &Client{Client: rdb, logger: logger}, nil
}
