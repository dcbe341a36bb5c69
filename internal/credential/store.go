// ABOUTME: Credential storage and tiered credential selection
// ABOUTME: An override from the store beats the configured default and the builtin id
package credential

import (
	"context"
	"strings"
	"sync"

	"github.com/visual-lock/visuallock/internal/logger"
)

// BuiltinClientID is used when neither an override nor a default is set
const BuiltinClientID = "agP0r35t035076326e4e5e7b5a8c2d2e"

// Store persists the override credential
type Store interface {
	// Load returns the stored override, or "" when none is set
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
	Close() error
}

// Chain picks the active credential from its tiers
type Chain struct {
	store    Store
	fallback string
}

// NewChain creates a chain over store with a configured default.
// A nil store means no override tier.
func NewChain(store Store, defaultID string) *Chain {
	return &Chain{store: store, fallback: strings.TrimSpace(defaultID)}
}

// Current returns the highest priority non-empty credential
func (c *Chain) Current(ctx context.Context) string {
	if c.store != nil {
		v, err := c.store.Load(ctx)
		if err != nil {
			logger.Warn("Failed to load stored credential", logger.ErrorField(err))
		} else if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if c.fallback != "" {
		return c.fallback
	}
	return BuiltinClientID
}

// Store returns the override store, which may be nil
func (c *Chain) Store() Store {
	return c.store
}

// MemoryStore keeps the override in process memory only
type MemoryStore struct {
	mu    sync.Mutex
	value string
}

func (m *MemoryStore) Load(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *MemoryStore) Save(ctx context.Context, value string) error {
	m.mu.Lock()
	m.value = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
