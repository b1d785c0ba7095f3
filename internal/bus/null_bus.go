package bus

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	origin string
	logger *log.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(log.Writer(), "[NullBus] ", log.LstdFlags)
	}
	return &NullBus{origin: uuid.NewString(), logger: logger}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

func (nb *NullBus) Origin() string { return nb.origin }

// Publish logs the event but doesn't actually publish it
func (nb *NullBus) Publish(ctx context.Context, ev Event) error {
	nb.logger.Printf("Would publish %s %s (Redis disabled)", ev.Kind, ev.Subject)
	return nil
}

func (nb *NullBus) PublishSession(ctx context.Context, kind, subject string) error {
	return nb.Publish(ctx, newEvent(nb.origin, sessionKind(kind), subject))
}

// Subscribe blocks until the context is cancelled; nothing is ever delivered
func (nb *NullBus) Subscribe(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
