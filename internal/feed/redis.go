package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "doodle:notes"

// Redis is a Bus over Redis pub/sub, shared by every process pointed at the
// same server.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedis connects to redisURL ("redis://host:port/db").
func NewRedis(redisURL, channel string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client, channel, logger), nil
}

// NewRedisWithClient creates a bus from an existing client.
func NewRedisWithClient(client *redis.Client, channel string, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, channel: channel, logger: logger}
}

// Publish sends u as JSON on the bus channel.
func (b *Redis) Publish(ctx context.Context, u Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

// Subscribe listens on the bus channel until ctx is done.
func (b *Redis) Subscribe(ctx context.Context) (<-chan Update, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Update, subscriberBuffer)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					b.logger.Warn("feed: bad payload", slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks that Redis is reachable.
func (b *Redis) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *Redis) Close() error {
	return b.client.Close()
}
