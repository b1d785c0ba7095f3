// Package assistant holds the internal chat: the console-side transcript and
// the responders the development backend answers with.
package assistant

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrBusy is returned when a question is sent while another is in flight.
var ErrBusy = errors.New("assistant: a request is already in flight")

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("assistant: empty message")

// Message is one transcript entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Backend answers one question. *api.Client satisfies it.
type Backend interface {
	InternalChat(ctx context.Context, message string) (string, error)
}

// Conversation is the in-memory transcript of one chat screen.
type Conversation struct {
	backend Backend
	logger  *log.Logger

	mu       sync.Mutex
	messages []Message
	inFlight bool
	lastErr  error
}

func NewConversation(backend Backend, logger *log.Logger) *Conversation {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Conversation{backend: backend, logger: logger}
}

// Send appends the user message, asks the backend and appends the answer.
// Blank input and input while a request is in flight are ignored. On failure
// the user message stays in the transcript and the error is returned.
func (c *Conversation) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmpty
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Message{}, ErrBusy
	}
	c.inFlight = true
	c.lastErr = nil
	c.messages = append(c.messages, Message{Role: RoleUser, Content: text, Timestamp: time.Now()})
	c.mu.Unlock()

	answer, err := c.backend.InternalChat(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.lastErr = err
		c.logger.Printf("assistant: chat failed: %v", err)
		return Message{}, err
	}
	reply := Message{Role: RoleAssistant, Content: answer, Timestamp: time.Now()}
	c.messages = append(c.messages, reply)
	return reply, nil
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Busy reports whether a request is in flight.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Err is the error of the last Send, nil after a success.
func (c *Conversation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Reset clears the transcript.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.lastErr = nil
}

// EstimateTokens is a rough count used for logging, ~4 characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}
