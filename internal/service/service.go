// Package service wires hardware detection, catalog, store, session manager
// and generator into the application used by the CLI and the HTTP API.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"kairos/internal/catalog"
	"kairos/internal/chat"
	"kairos/internal/common/fsutil"
	"kairos/internal/config"
	"kairos/internal/engine"
	"kairos/internal/events"
	"kairos/internal/hardware"
	"kairos/internal/manager"
	"kairos/internal/store"
	"kairos/pkg/types"
)

// Options configure a Service. Config is required; every other field has a
// production default.
type Options struct {
	Config    config.Config
	Engine    engine.Engine
	Hardware  hardware.Options
	Fetcher   catalog.Fetcher
	Publisher events.Publisher
	Logger    *zerolog.Logger
}

// Service is the application facade. It is safe for concurrent use.
type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	hw      *hardware.Inventory
	db      *store.DB
	catalog *catalog.Catalog
	manager *manager.Manager
	gen     *chat.Generator
	docs    *chat.KeywordIndex
	gate    *gate
	bus     *events.Bus
	started time.Time
}

// New builds and initializes a Service.
func New(ctx context.Context, opts Options) (*Service, error) {
	cfg := opts.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	modelsDir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	cfg.ModelsDir = modelsDir
	dbPath := cfg.Database
	if dbPath != ":memory:" {
		if dbPath, err = fsutil.ExpandHome(dbPath); err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	// every component publishes to the bus; opts.Publisher sees the same events
	bus := events.NewBus(0, opts.Publisher)

	hwOpts := opts.Hardware
	if hwOpts.Logger == nil {
		hwOpts.Logger = opts.Logger
	}
	inv := hardware.NewInventory(hwOpts)
	sel := inv.SetSelectedBackend(hardware.ParseBackend(cfg.Backend))
	log.Info().Str("backend", string(sel.Selected)).Str("hardware", sel.StatusMessage()).Msg("hardware detected")
	if cfg.Threads <= 0 {
		cfg.Threads = max(1, sel.PhysicalCores)
	}

	cat := catalog.New(catalog.Options{
		ModelsDir: modelsDir,
		Entries:   cfg.Models,
		Store:     db,
		Fetcher:   opts.Fetcher,
		Publisher: bus,
		Logger:    opts.Logger,
	})
	if err := cat.Initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	mgr := manager.NewWithConfig(manager.Config{
		Engine:      opts.Engine,
		Catalog:     cat,
		Hardware:    inv,
		ContextSize: cfg.ContextSize,
		Threads:     cfg.Threads,
		InspectGGUF: true,
		Publisher:   bus,
		Logger:      opts.Logger,
	})
	docs := chat.NewKeywordIndex()
	gen := chat.New(chat.Config{
		Sessions:  mgr,
		Retriever: docs,
		MaxTokens: cfg.MaxTokens,
		Publisher: bus,
		Logger:    opts.Logger,
	})

	return &Service{
		cfg:     cfg,
		log:     log,
		hw:      inv,
		db:      db,
		catalog: cat,
		manager: mgr,
		gen:     gen,
		docs:    docs,
		bus:     bus,
		gate:    newGate(cfg.MaxQueueDepth, time.Duration(cfg.MaxWaitSeconds)*time.Second),
		started: time.Now(),
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() config.Config { return s.cfg }

// Catalog exposes the model catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Documents exposes the retrieval index used for prompts.
func (s *Service) Documents() *chat.KeywordIndex { return s.docs }

// Subscribe streams lifecycle events until the returned func is called.
func (s *Service) Subscribe() (<-chan events.Event, func()) { return s.bus.Subscribe() }

// Models returns every catalog entry in wire form.
func (s *Service) Models() []types.Model {
	list := s.catalog.List()
	out := make([]types.Model, 0, len(list))
	for _, d := range list {
		out = append(out, ModelView(d))
	}
	return out
}

// Hardware returns the cached hardware profile.
func (s *Service) Hardware() hardware.Profile { return s.hw.Detect() }

// SelectBackend overrides the backend used for subsequent loads.
func (s *Service) SelectBackend(b hardware.Backend) hardware.Profile {
	return s.hw.SetSelectedBackend(b)
}

// RefreshHardware drops the cached profile and detects again.
func (s *Service) RefreshHardware() hardware.Profile {
	sel := s.hw.Detect().Selected
	s.hw.ClearCache()
	return s.hw.SetSelectedBackend(sel)
}

// Ready reports whether a model is loaded.
func (s *Service) Ready() bool { return s.manager.Ready() }

// ActiveModel returns the loaded model name, or "".
func (s *Service) ActiveModel() string { return s.manager.ActiveModel() }

// Load makes name the active model.
func (s *Service) Load(ctx context.Context, name string, progress func(float64)) error {
	return s.manager.SetActiveModel(ctx, name, progress)
}

// Unload releases the active model.
func (s *Service) Unload() error { return s.manager.Unload() }

// Reload unloads and loads the active model again, giving it a fresh context.
func (s *Service) Reload(ctx context.Context, progress func(float64)) error {
	return s.manager.Reload(ctx, progress)
}

// Download fetches the weights for name.
func (s *Service) Download(ctx context.Context, name string, progress func(float64)) error {
	return s.catalog.Download(ctx, name, progress)
}

// Pause stops the in-flight download of name, keeping the partial file. It
// reports whether a download was running.
func (s *Service) Pause(name string) bool { return s.catalog.Pause(name) }

// Resume continues a paused or failed download from its partial file.
func (s *Service) Resume(ctx context.Context, name string, progress func(float64)) error {
	return s.catalog.Resume(ctx, name, progress)
}

// Delete removes the weights for name, unloading it first when active.
func (s *Service) Delete(name string) error {
	if err := s.unloadIfActive(name); err != nil {
		return err
	}
	return s.catalog.Delete(name)
}

// AddCustom registers a user model.
func (s *Service) AddCustom(ctx context.Context, m catalog.CustomModel) (catalog.Descriptor, error) {
	return s.catalog.AddCustom(ctx, m)
}

// RemoveCustom forgets a user model, unloading it first when active.
func (s *Service) RemoveCustom(ctx context.Context, name string) error {
	if err := s.unloadIfActive(name); err != nil {
		return err
	}
	return s.catalog.RemoveCustom(ctx, name)
}

func (s *Service) unloadIfActive(name string) error {
	if s.manager.ActiveModel() != name {
		return nil
	}
	return s.manager.Unload()
}

// Generate returns the complete reply to msgs. Generations are admitted one
// at a time.
func (s *Service) Generate(ctx context.Context, msgs []chat.Message) (string, chat.Stats, error) {
	release, err := s.gate.begin(ctx)
	if err != nil {
		return "", chat.Stats{}, err
	}
	defer release()
	var out []byte
	st, err := s.gen.Stream(ctx, msgs, func(tok string) bool {
		out = append(out, tok...)
		return true
	})
	return string(out), st, err
}

// Stream passes every fragment of the reply to onToken. See chat.Generator.Stream.
func (s *Service) Stream(ctx context.Context, msgs []chat.Message, onToken func(string) bool) (chat.Stats, error) {
	release, err := s.gate.begin(ctx)
	if err != nil {
		return chat.Stats{}, err
	}
	defer release()
	return s.gen.Stream(ctx, msgs, onToken)
}

// LastStats returns the statistics of the latest generation.
func (s *Service) LastStats() chat.Stats { return s.gen.LastStats() }

// Shutdown unloads the model and closes the store.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	if uerr := s.manager.Unload(); uerr != nil {
		err = multierr.Append(err, fmt.Errorf("unload: %w", uerr))
	}
	if cerr := s.db.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("close store: %w", cerr))
	}
	if err == nil {
		s.log.Info().Msg("service stopped")
	}
	return err
}
