package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultPrefix namespaces the stream key.
const DefaultPrefix = "leads-console:"

// maxStreamLen caps the event stream; consoles only read new entries.
const maxStreamLen = 1000

// RedisBus provides Redis Streams-based event fan-out between consoles
type RedisBus struct {
	client *redis.Client
	stream string
	origin string
	logger *log.Logger
}

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL, prefix string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBusFromClient(client, prefix, logger), nil
}

// NewRedisBusFromClient wraps an existing client, e.g. the session storage's.
func NewRedisBusFromClient(client *redis.Client, prefix string, logger *log.Logger) *RedisBus {
	if logger == nil {
		logger = log.New(log.Writer(), "[RedisBus] ", log.LstdFlags)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisBus{
		client: client,
		stream: prefix + "events",
		origin: uuid.NewString(),
		logger: logger,
	}
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

func (rb *RedisBus) Origin() string { return rb.origin }

// Stream is the key of the events stream.
func (rb *RedisBus) Stream() string { return rb.stream }

// Publish appends an event to the events stream
func (rb *RedisBus) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Origin == "" {
		ev.Origin = rb.origin
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}

	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rb.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: encodeEvent(ev),
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Kind, err)
	}

	rb.logger.Printf("Published %s to %s", ev.Kind, rb.stream)
	return nil
}

func (rb *RedisBus) PublishSession(ctx context.Context, kind, subject string) error {
	return rb.Publish(ctx, newEvent(rb.origin, sessionKind(kind), subject))
}

// Subscribe reads the stream from "now" on. Every console reads every event,
// so plain XREAD is used rather than a consumer group.
func (rb *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	lastID := "$"
	rb.logger.Printf("Starting event reader for %s", rb.stream)

	for {
		select {
		case <-ctx.Done():
			rb.logger.Printf("Event reader for %s stopping due to context cancellation", rb.stream)
			return ctx.Err()
		default:
		}

		result := rb.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{rb.stream, lastID},
			Count:   10,
			Block:   time.Second,
		})
		if err := result.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.logger.Printf("Error reading from stream %s: %v", rb.stream, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, stream := range result.Val() {
			for _, message := range stream.Messages {
				lastID = message.ID
				ev := decodeEvent(message.Values)
				if ev.Origin == rb.origin {
					continue
				}
				if err := handler(ctx, ev); err != nil {
					rb.logger.Printf("Error processing event %s: %v", message.ID, err)
				}
			}
		}
	}
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the events stream
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis", "stream": rb.stream}
	info, err := rb.client.XInfoStream(ctx, rb.stream).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || isNoSuchKey(err) {
			stats["length"] = int64(0)
			return stats, nil
		}
		return nil, fmt.Errorf("failed to get stream info for %s: %w", rb.stream, err)
	}
	stats["length"] = info.Length
	stats["last_entry_id"] = info.LastEntry.ID
	return stats, nil
}

func isNoSuchKey(err error) bool {
	return err != nil && err.Error() == "ERR no such key"
}

func encodeEvent(ev Event) map[string]interface{} {
	return map[string]interface{}{
		"id":        ev.ID,
		"kind":      ev.Kind,
		"subject":   ev.Subject,
		"origin":    ev.Origin,
		"timestamp": ev.Timestamp,
	}
}

func decodeEvent(values map[string]interface{}) Event {
	field := func(k string) string {
		if s, ok := values[k].(string); ok {
			return s
		}
		return ""
	}
	ev := Event{
		ID:      field("id"),
		Kind:    field("kind"),
		Subject: field("subject"),
		Origin:  field("origin"),
	}
	if ts, err := parseTimestamp(field("timestamp")); err == nil {
		ev.Timestamp = ts
	}
	return ev
}

// parseTimestamp parses a timestamp string to int64
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}

	// Numeric epoch (seconds or milliseconds)
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}

	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}
