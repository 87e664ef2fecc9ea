// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBridge relays feed events between instances over a Redis pub/sub
// channel. Locally published events go out to Redis; events received
// from Redis are re-published on the local broker unless this instance
// originated them.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	broker  *Broker
	log     *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRedisBridge connects to Redis and verifies the connection.
func NewRedisBridge(url, channel, origin string, broker *Broker, log *slog.Logger) (*RedisBridge, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisBridge{
		client:  client,
		channel: channel,
		origin:  origin,
		broker:  broker,
		log:     log,
		done:    make(chan struct{}),
	}, nil
}

// Start subscribes to the channel and relays incoming events until Stop
// is called.
func (b *RedisBridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	sub := b.client.Subscribe(ctx, b.channel)
	go func() {
		defer close(b.done)
		defer func() { _ = sub.Close() }()

		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("discarding malformed feed message", "error", err)
				continue
			}
			if ev.Origin == b.origin {
				continue
			}
			b.broker.Publish(ev)
		}
	}()
}

// Publish sends the event to the Redis channel for other instances.
func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Stop shuts down the subscription and closes the Redis connection.
func (b *RedisBridge) Stop() error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	return b.client.Close()
}
