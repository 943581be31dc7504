package events

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/blackwell-systems/examwatch/internal/logger"
)

// DefaultRedisChannel is used when no channel is configured.
const DefaultRedisChannel = "examwatch:events"

// RedisBus fans events out over a Redis pub/sub channel so that several
// processes (the CLI, a watcher, an MCP server) see each other's records.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to addr and verifies the connection.
func NewRedisBus(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisBus, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultRedisChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log:     logger.OrNop(log).With("component", "redis_bus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe starts a forwarding goroutine that stops when ctx is done or
// the returned function is called.
func (b *RedisBus) Subscribe(ctx context.Context, h Handler, topics ...Topic) (func(), error) {
	if h == nil {
		return nil, fmt.Errorf("handler required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, ok := decodeMessage(m.Payload, topics)
				if !ok {
					continue
				}
				h(ctx, ev)
			}
		}
	}()
	return cancel, nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

// decodeMessage parses a channel payload and reports whether it matches
// one of topics (any topic when empty).
func decodeMessage(payload string, topics []Topic) (Event, bool) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Topic == "" {
		return Event{}, false
	}
	if len(topics) > 0 && !slices.Contains(topics, ev.Topic) {
		return Event{}, false
	}
	return ev, true
}
