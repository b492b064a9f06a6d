package manager

import (
	"context"
	"time"

	"kairos/internal/engine"
	"kairos/internal/events"
	"kairos/internal/hardware"
	"kairos/internal/planner"
)

// Progress checkpoints reported while loading.
const (
	progressValidated = 5
	progressUnloaded  = 10
	progressPlanned   = 20
	progressAttempts  = 30
	progressAttemptsN = 60
	progressLoaded    = 90
	progressDone      = 100
)

// SetActiveModel unloads the current session and loads name, walking the
// GPU-layer fallback ladder until one attempt succeeds. progress, which may
// be nil, receives non-decreasing percentages and 100 on success; on failure
// it stops at the last reported value. When every attempt fails the
// returned error is a *LoadError, the descriptor carries its message and no
// session is loaded.
func (m *Manager) SetActiveModel(ctx context.Context, name string, progress func(float64)) error {
	report := func(p float64) {
		if progress != nil {
			progress(p)
		}
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	desc, err := m.catalog.EnsureDownloaded(name)
	if err != nil {
		return err
	}
	report(progressValidated)

	if err := m.unloadLocked(); err != nil {
		m.log.Warn().Err(err).Msg("releasing previous session")
	}
	report(progressUnloaded)

	m.mu.Lock()
	m.state, m.loading, m.lastErr = StateLoading, name, ""
	m.mu.Unlock()
	m.pub.Publish(events.Event{Name: events.ModelLoading, Model: name})

	profile := m.hw.Detect()
	blocks := 0
	if m.inspect {
		blocks = m.catalog.BlockCount(name)
	}
	ladder := planner.PlanWithLayers(profile, desc.SizeBytes, blocks)
	m.log.Info().
		Str("model", name).
		Str("backend", string(profile.Selected)).
		Ints("ladder", ladder).
		Int("blocks", blocks).
		Msg("loading model")
	report(progressPlanned)

	var attempts []Attempt
	tried := make(map[int]bool, len(ladder))
	for i, layers := range ladder {
		if tried[layers] {
			continue
		}
		tried[layers] = true
		report(progressAttempts + float64(progressAttemptsN*i)/float64(len(ladder)))

		start := time.Now()
		s, err := m.tryLoad(desc.Path, layers)
		if err == nil {
			s.model, s.backend = name, backendInEffect(profile.Selected, layers)
			report(progressLoaded)
			m.activate(s)
			loadAttemptsTotal.WithLabelValues("success").Inc()
			loadedGPULayers.Set(float64(layers))
			m.log.Info().Str("model", name).Int("layers", layers).Dur("dur", time.Since(start)).Msg("model loaded")
			m.pub.Publish(events.Event{Name: events.ModelLoaded, Model: name, Fields: map[string]any{
				"layers": layers, "backend": string(s.backend),
			}})
			report(progressDone)
			return nil
		}

		attempts = append(attempts, Attempt{Layers: layers, Err: err})
		loadAttemptsTotal.WithLabelValues("failure").Inc()
		m.log.Warn().Err(err).Str("model", name).Int("layers", layers).Msg("load attempt failed")
		m.pub.Publish(events.Event{Name: events.LoadAttemptFailed, Model: name, Fields: map[string]any{
			"layers": layers, "error": err.Error(),
		}})
		if layers == 0 || engine.IsDependencyUnavailable(err) {
			break
		}
	}

	lerr := &LoadError{Model: name, Attempts: attempts}
	m.mu.Lock()
	m.state, m.lastErr = StateFailed, lerr.Message()
	m.mu.Unlock()
	m.catalog.SetLoadError(name, lerr.Message())
	m.catalog.SetActive("")
	m.pub.Publish(events.Event{Name: events.ModelLoadFailed, Model: name, Fields: map[string]any{"error": lerr.Message()}})

	m.mu.Lock()
	m.state, m.loading = StateUnloaded, ""
	m.mu.Unlock()
	return lerr
}

// tryLoad loads weights and creates a context, releasing the weights when
// context creation fails.
func (m *Manager) tryLoad(path string, layers int) (*session, error) {
	w, err := m.engine.LoadWeights(path, engine.LoadParams{
		ContextSize: m.contextSize,
		GPULayers:   layers,
		Threads:     m.threads,
	})
	if err != nil {
		return nil, err
	}
	c, err := w.NewContext(m.contextSize)
	if err != nil {
		if cerr := w.Close(); cerr != nil {
			m.log.Debug().Err(cerr).Msg("closing weights after context failure")
		}
		return nil, err
	}
	return &session{path: path, layers: layers, weights: w, ctx: c, loadedAt: time.Now()}, nil
}

func (m *Manager) activate(s *session) {
	m.mu.Lock()
	m.sess, m.state, m.loading, m.lastErr = s, StateLoaded, "", ""
	m.mu.Unlock()
	m.catalog.SetActive(s.model)
	m.catalog.SetLoadError(s.model, "")
}

// backendInEffect is the selected backend, or CPU when nothing was offloaded.
func backendInEffect(selected hardware.Backend, layers int) hardware.Backend {
	if layers == 0 && selected.UsesGPU() {
		return hardware.BackendCPU
	}
	return selected
}
