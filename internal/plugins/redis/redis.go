package redis

import (
	"context"
	"fmt"
	"taskpulse/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient dials Redis and verifies it with a ping; name shows up in CLIENT LIST.
func NewRedisClient(ctx context.Context, name string, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := clientOptions(name, cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx := ctx
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
	}
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// clientOptions overlays the pool settings on the URL; zero values keep the
// go-redis defaults.
func clientOptions(name string, cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ClientName = name
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	return opts, nil
}
