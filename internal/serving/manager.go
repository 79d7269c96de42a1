package serving

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Loader produces a fresh Dataset from the persisted artifacts.
type Loader func(ctx context.Context) (*Dataset, error)

// Manager holds the active dataset version and swaps it atomically on
// reload. Readers always see a complete dataset: either the one from before
// the swap or the one after, never a mix.
type Manager struct {
	load    Loader
	current atomic.Pointer[Dataset]

	// Serializes reloads so concurrent admin requests cannot race loads.
	reloadMu sync.Mutex
}

// NewManager loads the initial dataset and returns a manager serving it.
func NewManager(ctx context.Context, load Loader) (*Manager, error) {
	m := &Manager{load: load}
	ds, err := load(ctx)
	if err != nil {
		return nil, err
	}
	m.current.Store(ds)
	return m, nil
}

// Current returns the active dataset. Callers must fetch it once per request
// and use that reference throughout, so a mid-request reload cannot mix
// versions.
func (m *Manager) Current() *Dataset {
	return m.current.Load()
}

// Reload loads a new dataset and makes it active. On failure the previous
// dataset stays in service untouched.
func (m *Manager) Reload(ctx context.Context) (*Dataset, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	ds, err := m.load(ctx)
	if err != nil {
		log.Printf("[Dataset] Reload failed, keeping version %s: %v", m.Current().Version, err)
		return nil, err
	}
	prev := m.current.Swap(ds)
	log.Printf("[Dataset] Swapped version %s -> %s", prev.Version, ds.Version)
	return ds, nil
}
