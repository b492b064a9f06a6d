package manager

import (
	"context"

	"go.uber.org/multierr"

	"kairos/internal/events"
)

// Unload releases the loaded session. It is a no-op when nothing is loaded
// and waits for outstanding leases. Close errors are returned but the
// session is gone either way.
func (m *Manager) Unload() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.unloadLocked()
}

func (m *Manager) unloadLocked() error {
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	m.state = StateUnloading
	m.mu.Unlock()

	m.sessMu.Lock()
	err := multierr.Combine(s.ctx.Close(), s.weights.Close())
	m.mu.Lock()
	m.sess, m.state = nil, StateUnloaded
	m.mu.Unlock()
	m.sessMu.Unlock()

	m.catalog.SetActive("")
	loadedGPULayers.Set(0)
	m.log.Info().Str("model", s.model).Msg("model unloaded")
	m.pub.Publish(events.Event{Name: events.ModelUnloaded, Model: s.model})
	return err
}

// Reload unloads and reloads the active model, discarding conversation state.
func (m *Manager) Reload(ctx context.Context, progress func(float64)) error {
	name := m.ActiveModel()
	if name == "" {
		return ErrNoModelLoaded
	}
	return m.SetActiveModel(ctx, name, progress)
}
