package devapi

import (
	"context"
	"log"
)

// Mailer delivers password recovery tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer is the development outbox: recovery tokens go to the server log
// instead of an inbox.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.logger.Printf("[outbox] password recovery for %s: token=%s", email, token)
	return nil
}
