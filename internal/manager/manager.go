package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kairos/internal/engine"
	"kairos/internal/events"
	"kairos/internal/hardware"
)

// State is the lifecycle state of the session.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateUnloading State = "unloading"
	// StateFailed is transient; the manager settles in StateUnloaded.
	StateFailed State = "failed"
)

// session owns the native handles of the loaded model.
type session struct {
	model    string
	path     string
	layers   int
	backend  hardware.Backend
	loadedAt time.Time
	weights  engine.Weights
	ctx      engine.Context
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State        State
	Model        string
	LoadingModel string
	GPULayers    int
	Backend      hardware.Backend
	LoadedAt     time.Time
	LastError    string
}

// Manager loads at most one model at a time.
type Manager struct {
	engine      engine.Engine
	catalog     Catalog
	hw          Hardware
	contextSize int
	threads     int
	inspect     bool
	pub         events.Publisher
	log         zerolog.Logger

	// opMu serializes load and unload.
	opMu sync.Mutex
	// sessMu is held shared by leases and exclusively while freeing handles.
	sessMu sync.RWMutex

	mu      sync.RWMutex
	state   State
	sess    *session
	loading string
	lastErr string
}

// NewWithConfig constructs a Manager from Config.
func NewWithConfig(cfg Config) *Manager {
	m := &Manager{
		engine:      cfg.Engine,
		catalog:     cfg.Catalog,
		hw:          cfg.Hardware,
		contextSize: cfg.ContextSize,
		threads:     cfg.Threads,
		inspect:     cfg.InspectGGUF,
		pub:         events.OrNoop(cfg.Publisher),
		log:         zerolog.Nop(),
		state:       StateUnloaded,
	}
	if m.contextSize <= 0 {
		m.contextSize = defaultContextSize
	}
	if m.engine == nil {
		m.engine = engine.NewLlama()
	}
	if m.hw == nil {
		m.hw = hardware.NewInventory(hardware.Options{Logger: cfg.Logger})
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	}
	return m
}

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{State: m.state, LoadingModel: m.loading, LastError: m.lastErr}
	if m.sess != nil {
		s.Model = m.sess.model
		s.GPULayers = m.sess.layers
		s.Backend = m.sess.backend
		s.LoadedAt = m.sess.loadedAt
	}
	return s
}

// Ready reports whether a session is loaded.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateLoaded && m.sess != nil
}

// ActiveModel returns the name of the loaded model, or "".
func (m *Manager) ActiveModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.model
}
