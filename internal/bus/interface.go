package bus

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event kinds carried on the bus.
const (
	KindLogin        = "session.login"
	KindLogout       = "session.logout"
	KindLeadsChanged = "leads.changed"
)

// Event is one notification shared between consoles and the ingest worker.
type Event struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`
}

// Handler processes one event. Returning an error only logs it.
type Handler func(ctx context.Context, ev Event) error

// Bus defines the interface for event bus implementations
type Bus interface {
	// Publish appends an event to the shared stream
	Publish(ctx context.Context, ev Event) error

	// PublishSession adapts Publish to session login and logout notifications
	PublishSession(ctx context.Context, kind, subject string) error

	// Subscribe delivers events published after the call until ctx is done.
	// Events from this bus instance itself are skipped.
	Subscribe(ctx context.Context, handler Handler) error

	// Origin identifies this bus instance on published events
	Origin() string

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or unreachable, returns a NullBus
func NewBus(redisURL, prefix string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, prefix, logger)
	if err == nil {
		return redisBus
	}

	// Fall back to null bus if Redis fails
	logger.Printf("bus: redis unavailable, events disabled: %v", err)
	return NewNullBus(logger)
}

// newEvent stamps id, origin and time on a session or leads notification.
func newEvent(origin, kind, subject string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Origin:    origin,
		Timestamp: time.Now().Unix(),
	}
}

// sessionKind maps session event names ("login", "logout") to bus kinds.
func sessionKind(kind string) string {
	switch kind {
	case "login":
		return KindLogin
	case "logout":
		return KindLogout
	}
	return "session." + kind
}
