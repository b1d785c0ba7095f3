package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/nilcar/leads-console/internal/store"
)

// ErrNotFound is returned by Storage.Get for a missing key.
var ErrNotFound = errors.New("session key not found")

// Storage is durable key/value storage for the session.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by NewStorage.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// StorageConfig selects and configures a backend.
type StorageConfig struct {
	Backend     string
	Path        string
	RedisURL    string
	RedisPrefix string
}

// NewStorage opens the configured backend. When it cannot be opened the
// session falls back to memory, which lasts only for this process.
func NewStorage(cfg StorageConfig, logger *log.Logger) (Storage, string) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendRedis:
		rs, err := NewRedisStorage(cfg.RedisURL, cfg.RedisPrefix, logger)
		if err == nil {
			return rs, BackendRedis
		}
		logger.Printf("session: redis unavailable, using memory: %v", err)
	case BackendMemory:
		return NewMemoryStorage(), BackendMemory
	default:
		ss, err := OpenSQLiteStorage(cfg.Path)
		if err == nil {
			return ss, BackendSQLite
		}
		logger.Printf("session: sqlite unavailable, using memory: %v", err)
	}
	return NewMemoryStorage(), BackendMemory
}

// MemoryStorage keeps the session in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStorage) Close() error { return nil }

// SQLiteStorage keeps the session in the kv table of a local database.
type SQLiteStorage struct {
	store *store.Store
	owned bool
}

// OpenSQLiteStorage opens its own database at path.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	st, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	return &SQLiteStorage{store: st, owned: true}, nil
}

// NewSQLiteStorage shares an already open store; Close leaves it open.
func NewSQLiteStorage(st *store.Store) *SQLiteStorage {
	return &SQLiteStorage{store: st}
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, error) {
	v, err := s.store.GetValue(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	return s.store.SetValue(ctx, key, value)
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	return s.store.DeleteValue(ctx, key)
}

func (s *SQLiteStorage) Close() error {
	if s.owned {
		return s.store.Close()
	}
	return nil
}
