// Package datasource defines the source-agnostic adapter contract that turns
// an external data source (file, database, HTTP API) into the internal table
// representation, plus the shared fetch cache and the adapter registry.
//
// Each variant lives in its own subpackage and registers a constructor at
// init time; callers go through Open and never import a variant directly
// (import the "all" subpackage for its side effects). Variants share no
// connection state; the tagged-union DataSourceConfig is dispatched by its
// explicit type discriminator.
package datasource

import (
	"context"
	"fmt"
	"sync"

	"bivis/internal/config"
	"bivis/internal/schema"
	"bivis/pkg/table"
)

// Adapter is the capability set every source variant implements.
//
// All methods are safe for concurrent use. Fetch results are immutable
// snapshots: a caller may hold a returned table across a Refresh without
// ever observing a partially updated one.
type Adapter interface {
	// Connect validates the variant's required fields and, for network-bound
	// variants, performs a lightweight liveness probe without fetching data.
	// It fails with *ConnectionError.
	Connect(ctx context.Context) error

	// Fetch loads data honoring the optional query. A repeated fetch with an
	// identical resolved query returns the cached table instead of touching
	// the source again. It fails with *FetchError.
	Fetch(ctx context.Context, q *config.Query) (*table.Table, error)

	// Schema infers the semantic schema of the last-fetched table. It fails
	// with ErrNotConnected when no fetch has happened.
	Schema() (schema.Info, error)

	// Preview returns the first n rows of the cached table without
	// re-fetching. It fails with ErrNotConnected when no fetch has happened.
	Preview(n int) (*table.Table, error)

	// Refresh drops the cached table so the next fetch re-queries the source.
	Refresh()

	// Close releases connection resources. The adapter must not be used
	// afterwards.
	Close() error
}

// OpenFn constructs an adapter for an already-validated config.
type OpenFn func(cfg config.DataSourceConfig) (Adapter, error)

var (
	regMu    sync.RWMutex
	registry = map[string]OpenFn{}
)

// Register installs (or replaces) the constructor for a variant tag. It is
// called from variant packages' init functions.
func Register(kind string, fn OpenFn) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[kind] = fn
}

// Open validates cfg and dispatches to the registered variant constructor.
func Open(cfg config.DataSourceConfig) (Adapter, error) {
	if err := config.FirstError(config.ValidateDataSource(cfg)); err != nil {
		return nil, &ConnectionError{Reason: "invalid configuration", Err: err}
	}
	regMu.RLock()
	fn, ok := registry[cfg.Type]
	regMu.RUnlock()
	if !ok {
		return nil, &ConnectionError{
			Reason: fmt.Sprintf("no adapter registered for type %q", cfg.Type),
		}
	}
	return fn(cfg)
}
