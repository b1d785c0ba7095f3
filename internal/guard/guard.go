// Package guard decides whether protected screens may render.
package guard

import (
	"context"
	"io"
	"log"
	"sync"
)

// Status of a guard evaluation.
type Status int

const (
	Unknown Status = iota
	Valid
	Invalid
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// TokenChecker reports whether a session token is stored.
type TokenChecker interface {
	LoggedIn(ctx context.Context) bool
}

// Validator asks the backend whether the stored token is still accepted.
type Validator interface {
	Validate(ctx context.Context) error
}

// Guard is evaluated once per mount of the protected area.
type Guard struct {
	tokens    TokenChecker
	validator Validator
	logger    *log.Logger

	mu         sync.Mutex
	status     Status
	returnPath string
	onRedirect func(from string)
}

func New(tokens TokenChecker, validator Validator, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Guard{tokens: tokens, validator: validator, logger: logger}
}

// OnRedirect sets the callback run on Invalid with the originally requested path.
func (g *Guard) OnRedirect(fn func(from string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onRedirect = fn
}

// Status returns the result of the last evaluation.
func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// ReturnPath is where login should send the user back to.
func (g *Guard) ReturnPath() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.returnPath
}

// Reset returns to Unknown, e.g. when the protected area is unmounted.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = Unknown
}

// Evaluate runs the mount check for path. Without a token it fails immediately;
// otherwise it costs exactly one validation round-trip.
func (g *Guard) Evaluate(ctx context.Context, path string) Status {
	g.mu.Lock()
	g.status = Unknown
	g.mu.Unlock()

	status := Valid
	if !g.tokens.LoggedIn(ctx) {
		status = Invalid
	} else if err := g.validator.Validate(ctx); err != nil {
		g.logger.Printf("guard: session rejected for %s: %v", path, err)
		status = Invalid
	}

	g.mu.Lock()
	g.status = status
	var redirect func(string)
	if status == Invalid {
		g.returnPath = path
		redirect = g.onRedirect
	}
	g.mu.Unlock()

	if redirect != nil {
		redirect(path)
	}
	return status
}
