package datasource

import (
	"fmt"
	"log"
	"sync"

	"bivis/internal/config"
)

// Manager maps datasource ids to live adapter instances so that multiple
// charts built on the same source share one adapter (and its fetch cache).
// It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	configs  map[string]string // id -> config signature, to detect changes
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		adapters: make(map[string]Adapter),
		configs:  make(map[string]string),
	}
}

// Get returns the adapter registered under id.
func (m *Manager) Get(id string) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[id]
	return a, ok
}

// Adapter returns the adapter for cfg.ID, constructing it on first use. A
// config change under the same id closes the old adapter and opens a fresh
// one, which also discards its fetch cache.
func (m *Manager) Adapter(cfg config.DataSourceConfig) (Adapter, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("datasource: config has no id")
	}
	sig := configSignature(cfg)

	m.mu.RLock()
	a, ok := m.adapters[cfg.ID]
	same := ok && m.configs[cfg.ID] == sig
	m.mu.RUnlock()
	if same {
		return a, nil
	}

	fresh, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have won the race; prefer its adapter.
	if cur, ok := m.adapters[cfg.ID]; ok && m.configs[cfg.ID] == sig {
		_ = fresh.Close()
		return cur, nil
	}
	if old, ok := m.adapters[cfg.ID]; ok {
		if err := old.Close(); err != nil {
			log.Printf("datasource %s: close previous adapter: %v", cfg.ID, err)
		}
	}
	m.adapters[cfg.ID] = fresh
	m.configs[cfg.ID] = sig
	return fresh, nil
}

// Clear closes and removes the adapter registered under id.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.adapters[id]; ok {
		_ = a.Close()
		delete(m.adapters, id)
		delete(m.configs, id)
	}
}

// ClearAll closes and removes every adapter.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.adapters {
		_ = a.Close()
		delete(m.adapters, id)
		delete(m.configs, id)
	}
}

// configSignature folds the fields that affect a connection into a
// comparable string.
func configSignature(cfg config.DataSourceConfig) string {
	switch cfg.Type {
	case config.SourceFile:
		f := cfg.File
		return fmt.Sprintf("file|%s|%s|%s|%s|%t|%t",
			f.Path, f.Separator, f.Sheet, f.Encoding, f.NoHeader, f.NormalizeHeaders)
	case config.SourceDatabase:
		d := cfg.Database
		return fmt.Sprintf("db|%s|%s|%d|%s|%s|%s|%s|%s",
			d.Engine, d.Host, d.Port, d.User, d.Database, d.DSN, d.Table, d.SQL)
	case config.SourceAPI:
		a := cfg.API
		return fmt.Sprintf("api|%s|%s|%v|%v|%s", a.URL, a.Method, a.Headers, a.Params, a.ResultPath)
	default:
		return cfg.Type
	}
}
