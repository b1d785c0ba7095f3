package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nilcar/leads-console/internal/validate"
)

// Storage keys. Absence of KeyToken means "not logged in".
const (
	KeyToken = "token"
	KeyRole  = "userRole"
)

// Event kinds passed to a Publisher.
const (
	EventLogin  = "login"
	EventLogout = "logout"
)

// Publisher broadcasts session changes to other consoles sharing the storage.
type Publisher interface {
	PublishSession(ctx context.Context, kind, subject string) error
}

// Claims are the fields the console reads from a login token.
type Claims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry in the past.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// DecodeToken reads the claims of a JWT without verifying its signature.
// Only the backend can verify; the console uses the claims for display and routing.
func DecodeToken(token string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &tc); err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}
	c := Claims{Subject: tc.Subject, Role: validate.NormalizeRole(tc.Role)}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Session is the process-wide login state, injected where needed.
type Session struct {
	storage   Storage
	logger    *log.Logger
	mu        sync.Mutex
	onLogout  []func()
	publisher Publisher
}

// New wraps storage. Call Initialize before use.
func New(storage Storage, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Session{storage: storage, logger: logger}
}

// Initialize checks that the storage is readable.
func (s *Session) Initialize(ctx context.Context) error {
	if _, err := s.storage.Get(ctx, KeyToken); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("session storage unavailable: %w", err)
	}
	return nil
}

// SetPublisher attaches a broadcaster for login and logout.
func (s *Session) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// OnLogout registers a callback run after Logout, typically the redirect to login.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Login persists token and role.
func (s *Session) Login(ctx context.Context, token, role string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}
	role = validate.NormalizeRole(role)
	if err := s.storage.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.storage.Set(ctx, KeyRole, role); err != nil {
		return fmt.Errorf("store role: %w", err)
	}
	s.publish(ctx, EventLogin, role)
	return nil
}

// LoginWithToken decodes the role from the token and persists both.
func (s *Session) LoginWithToken(ctx context.Context, token string) (Claims, error) {
	claims, err := DecodeToken(token)
	if err != nil {
		return Claims{}, err
	}
	if err := s.Login(ctx, token, claims.Role); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Logout clears both keys and runs the logout callbacks. Callbacks run even
// if clearing fails so the user is never left on a protected screen.
func (s *Session) Logout(ctx context.Context) error {
	errTok := s.storage.Delete(ctx, KeyToken)
	errRole := s.storage.Delete(ctx, KeyRole)
	s.publish(ctx, EventLogout, "")

	s.mu.Lock()
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return errors.Join(errTok, errRole)
}

// Token returns the stored token, "" when absent or unreadable.
func (s *Session) Token(ctx context.Context) string {
	tok, err := s.storage.Get(ctx, KeyToken)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Printf("session: read token: %v", err)
		}
		return ""
	}
	return tok
}

// LoggedIn reports whether a token is stored.
func (s *Session) LoggedIn(ctx context.Context) bool {
	return s.Token(ctx) != ""
}

// Role returns the stored role.
func (s *Session) Role(ctx context.Context) (string, error) {
	return s.storage.Get(ctx, KeyRole)
}

// IsAdmin reports whether the stored role is ADMIN; any read failure is false.
func (s *Session) IsAdmin(ctx context.Context) bool {
	role, err := s.Role(ctx)
	if err != nil {
		return false
	}
	return validate.NormalizeRole(role) == validate.RoleAdmin
}

// Claims decodes the stored token.
func (s *Session) Claims(ctx context.Context) (Claims, error) {
	tok := s.Token(ctx)
	if tok == "" {
		return Claims{}, ErrNotFound
	}
	return DecodeToken(tok)
}

// Close releases the storage.
func (s *Session) Close() error {
	return s.storage.Close()
}

func (s *Session) publish(ctx context.Context, kind, subject string) {
	s.mu.Lock()
	p := s.publisher
	s.mu.Unlock()
	if p == nil {
		return
	}
	if err := p.PublishSession(ctx, kind, subject); err != nil {
		s.logger.Printf("session: publish %s: %v", kind, err)
	}
}
