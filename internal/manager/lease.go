package manager

import (
	"sync"

	"kairos/internal/engine"
	"kairos/internal/hardware"
)

// Lease grants use of the loaded context until Release. Unload waits for
// every outstanding lease.
type Lease struct {
	Model   string
	Backend hardware.Backend
	Layers  int
	Context engine.Context

	once    sync.Once
	release func()
}

// Release returns the lease. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// Acquire returns a lease on the loaded session, or ErrNoModelLoaded.
func (m *Manager) Acquire() (*Lease, error) {
	m.sessMu.RLock()
	m.mu.RLock()
	s, st := m.sess, m.state
	m.mu.RUnlock()
	if s == nil || st != StateLoaded {
		m.sessMu.RUnlock()
		return nil, ErrNoModelLoaded
	}
	return &Lease{
		Model:   s.model,
		Backend: s.backend,
		Layers:  s.layers,
		Context: s.ctx,
		release: m.sessMu.RUnlock,
	}, nil
}
