package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	// Driver is a registered backend name, such as "sqlite" or "postgres".
	Driver string
	// DSN is passed to the backend untouched.
	DSN string
}

// Factory opens a Store for one backend. Backends register their factory
// from init, so importing a backend package (usually via store/all) makes
// its driver name available here.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs or replaces the factory for a driver name.
func Register(driver string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[driver] = fn
}

// Drivers returns the registered backend names, sorted.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open dispatches to the registered factory for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	fn, ok := factories[cfg.Driver]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for driver %q (have %v)", cfg.Driver, Drivers())
	}
	return fn(ctx, cfg)
}
