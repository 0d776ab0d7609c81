// Package secrets resolves named credentials through a pluggable provider and
// memoizes them for the life of the process.
package secrets

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSecretUnavailable is returned when a secret cannot be resolved.
var ErrSecretUnavailable = eris.New("secret unavailable")

// Provider fetches a secret value by name.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// Cache memoizes the first successful resolution of each secret name. Entries
// are never refreshed. Concurrent first calls for the same name may both hit
// the provider.
type Cache struct {
	provider Provider

	mu     sync.Mutex
	values map[string]string
}

// NewCache wraps provider with a process-lifetime cache.
func NewCache(provider Provider) *Cache {
	return &Cache{provider: provider, values: make(map[string]string)}
}

// Resolve returns the cached value for name, fetching it on first use.
func (c *Cache) Resolve(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	v, ok := c.values[name]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := c.provider.Get(ctx, name)
	if err != nil {
		zap.L().Error("secrets: fetch failed", zap.String("name", name), zap.Error(err))
		return "", eris.Wrapf(ErrSecretUnavailable, "secrets: resolve %q: %v", name, err)
	}
	if strings.TrimSpace(v) == "" {
		return "", eris.Wrapf(ErrSecretUnavailable, "secrets: resolve %q: empty value", name)
	}

	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
	return v, nil
}

// StaticProvider serves secrets from an in-memory map.
type StaticProvider map[string]string

// Get implements Provider.
func (p StaticProvider) Get(_ context.Context, name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", eris.Errorf("static: no secret named %q", name)
	}
	return v, nil
}
