/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/timesignal/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string

	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		ChannelPrefix: "timesignal:events",
		DialTimeout:   5 * time.Second,
		WriteTimeout:  3 * time.Second,
	}
}

// Channel returns the pub/sub channel an event type is published on.
func (c RedisConfig) Channel(et events.EventType) string {
	return c.ChannelPrefix + ":" + string(et)
}

type redisSink struct {
	client *redis.Client
}

func (s *redisSink) publish(ctx context.Context, channel string, data []byte) error {
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *redisSink) close() error {
	return s.client.Close()
}

// NewRedisForwarder connects to Redis and returns a forwarder for bus.
func NewRedisForwarder(ctx context.Context, cfg RedisConfig, bus *events.Bus, logger zerolog.Logger) (*Forwarder, error) {
	logger = logger.With().Str("component", "eventbus").Str("broker", "redis").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Str("channel_prefix", cfg.ChannelPrefix).Msg("Redis event forwarding enabled")
	return newForwarder(bus, &redisSink{client: client}, cfg.Channel, NodeID(), logger), nil
}
