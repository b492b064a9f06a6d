// Package catalog tracks the known models, their files on disk and their
// download state. It merges statically configured entries with user-added
// models persisted in the store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"kairos/internal/common/fsutil"
	"kairos/internal/config"
	"kairos/internal/download"
	"kairos/internal/events"
	"kairos/internal/store"
)

// CustomStore persists user-added models.
type CustomStore interface {
	ListCustom(ctx context.Context) ([]store.CustomModel, error)
	AddCustom(ctx context.Context, m store.CustomModel) (store.CustomModel, error)
	DeleteCustom(ctx context.Context, name string) error
}

// Fetcher transfers files and cancels transfers by key.
type Fetcher interface {
	Download(ctx context.Context, req download.Request) error
	Cancel(key string) bool
}

// Options configure a Catalog.
type Options struct {
	ModelsDir string
	Entries   []config.ModelEntry
	// Store is optional; without it custom models are not available.
	Store     CustomStore
	Fetcher   Fetcher
	Publisher events.Publisher
	Logger    *zerolog.Logger
}

// Catalog is safe for concurrent use. Operations on the same model name are
// serialized by a per-name lock.
type Catalog struct {
	modelsDir string
	entries   []config.ModelEntry
	store     CustomStore
	fetcher   Fetcher
	pub       events.Publisher
	log       zerolog.Logger

	mu     sync.RWMutex
	models []*Descriptor
	byName map[string]*Descriptor

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New returns an empty catalog; call Initialize to populate it.
func New(opts Options) *Catalog {
	c := &Catalog{
		modelsDir: opts.ModelsDir,
		entries:   opts.Entries,
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		pub:       events.OrNoop(opts.Publisher),
		log:       zerolog.Nop(),
		byName:    make(map[string]*Descriptor),
		locks:     make(map[string]*sync.Mutex),
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	if c.fetcher == nil {
		c.fetcher = download.New(download.Options{Logger: opts.Logger})
	}
	return c
}

// Initialize rebuilds the model list from the configured entries, the store
// and any other *.gguf files in the models directory, and refreshes every
// descriptor from the files on disk. A store failure is logged and leaves
// the custom models out.
func (c *Catalog) Initialize(ctx context.Context) error {
	var list []*Descriptor
	for _, e := range c.entries {
		list = append(list, &Descriptor{
			Name:        e.Name,
			DisplayName: e.DisplayName,
			Description: e.Description,
			Category:    e.Category,
			Recommended: e.Recommended,
			SizeBytes:   e.SizeBytes,
			URL:         e.DownloadURL,
			Path:        filepath.Join(c.modelsDir, e.Name),
		})
	}
	if c.store != nil {
		customs, err := c.store.ListCustom(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("loading custom models failed")
		}
		for _, m := range customs {
			list = append(list, c.customDescriptor(m))
		}
	}
	list = append(list, c.discovered(list)...)

	c.mu.Lock()
	defer c.mu.Unlock()
	active := ""
	for _, d := range c.models {
		if d.Active {
			active = d.Name
		}
	}
	c.models = c.models[:0]
	c.byName = make(map[string]*Descriptor, len(list))
	for _, d := range list {
		if _, dup := c.byName[d.Name]; dup {
			c.log.Warn().Str("model", d.Name).Msg("duplicate model name ignored")
			continue
		}
		refresh(d)
		d.Active = d.Name == active && d.Downloaded
		c.models = append(c.models, d)
		c.byName[d.Name] = d
	}
	c.log.Info().Int("models", len(c.models)).Str("dir", c.modelsDir).Msg("catalog initialized")
	return nil
}

func (c *Catalog) customDescriptor(m store.CustomModel) *Descriptor {
	d := &Descriptor{
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Category:    "custom",
		SizeBytes:   m.SizeBytes,
		Custom:      true,
		IsLocal:     m.IsLocal,
	}
	if m.IsLocal {
		d.Path = m.FilePath
	} else {
		d.URL = m.DownloadURL
		d.Path = filepath.Join(c.modelsDir, m.Name)
	}
	return d
}

// refresh derives the on-disk state of d.
func refresh(d *Descriptor) {
	switch {
	case fsutil.FileExists(d.Path):
		d.Downloaded, d.State, d.Progress = true, StateCompleted, 100
		if d.SizeBytes <= 0 {
			d.SizeBytes = fsutil.FileSize(d.Path)
		}
	case fsutil.FileExists(d.Path + download.PartialSuffix):
		d.Downloaded, d.State = false, StatePaused
		if d.SizeBytes > 0 {
			d.Progress = min(100, float64(fsutil.FileSize(d.Path+download.PartialSuffix))/float64(d.SizeBytes)*100)
		}
	default:
		d.Downloaded, d.State, d.Progress = false, StateNotStarted, 0
	}
}

// List returns copies of every descriptor in catalog order.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, len(c.models))
	for i, d := range c.models {
		out[i] = *d
	}
	return out
}

// Downloaded returns copies of the descriptors whose files are present.
func (c *Catalog) Downloaded() []Descriptor {
	var out []Descriptor
	for _, d := range c.List() {
		if d.Downloaded {
			out = append(out, d)
		}
	}
	return out
}

// Get returns a copy of the named descriptor.
func (c *Catalog) Get(name string) (Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byName[name]
	if !ok {
		return Descriptor{}, ErrModelNotFound(name)
	}
	return *d, nil
}

// Active returns the active descriptor, if any.
func (c *Catalog) Active() (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.models {
		if d.Active {
			return *d, true
		}
	}
	return Descriptor{}, false
}

// EnsureDownloaded re-checks the file of name and clears Downloaded when it
// has disappeared since the last check.
func (c *Catalog) EnsureDownloaded(name string) (Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.byName[name]
	if !ok {
		return Descriptor{}, ErrModelNotFound(name)
	}
	if !d.Downloaded || !fsutil.FileExists(d.Path) {
		if d.Downloaded {
			c.log.Warn().Str("model", name).Str("path", d.Path).Msg("model file disappeared")
		}
		d.Downloaded, d.Active = false, false
		if d.State == StateCompleted {
			d.State, d.Progress = StateNotStarted, 0
		}
		return *d, notDownloadedError{name: name}
	}
	return *d, nil
}

// SetActive marks name as the only active model. An empty name clears the
// active flag everywhere.
func (c *Catalog) SetActive(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.models {
		d.Active = d.Name == name && name != ""
	}
}

// SetLoadError records the last load failure of name. An empty message clears it.
func (c *Catalog) SetLoadError(name, msg string) {
	c.update(name, func(d *Descriptor) { d.LoadError = msg })
}

func (c *Catalog) update(name string, fn func(d *Descriptor)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.byName[name]; ok {
		fn(d)
	}
}

func (c *Catalog) lockFor(name string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[name]
	if !ok {
		l = &sync.Mutex{}
		c.locks[name] = l
	}
	return l
}

// Delete cancels any transfer of name, then removes its weights and partial
// files and resets its state. Local custom models keep their file; use
// RemoveCustom to drop them from the catalog.
func (c *Catalog) Delete(name string) error {
	d, err := c.Get(name)
	if err != nil {
		return err
	}
	if d.IsLocal {
		return fmt.Errorf("model %s is a local file; remove it from the catalog instead", name)
	}
	c.fetcher.Cancel(name)
	l := c.lockFor(name)
	l.Lock()
	defer l.Unlock()

	if err := errors.Join(
		fsutil.RemoveIfExists(d.Path),
		fsutil.RemoveIfExists(d.Path+download.PartialSuffix),
	); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	c.update(name, func(d *Descriptor) {
		d.Downloaded, d.Active = false, false
		d.State, d.Progress = StateNotStarted, 0
		d.DownloadError, d.LoadError = "", ""
	})
	c.log.Info().Str("model", name).Msg("model deleted")
	return nil
}

// Verify checks that the weights file of name exists, is at least
// MinModelBytes long and is readable at both ends.
func (c *Catalog) Verify(name string) error {
	d, err := c.Get(name)
	if err != nil {
		return err
	}
	return verifyFile(name, d.Path)
}

// MinModelBytes is the smallest file accepted as a model.
const MinModelBytes = 1_000_000

const verifyEndBytes = 4096

func verifyFile(name, path string) error {
	if !fsutil.FileExists(path) {
		return &VerifyError{Name: name, Reason: "file does not exist"}
	}
	if size := fsutil.FileSize(path); size < MinModelBytes {
		return &VerifyError{Name: name, Reason: fmt.Sprintf("file too small (%d bytes)", size)}
	}
	if err := fsutil.ReadEnds(path, verifyEndBytes); err != nil {
		return &VerifyError{Name: name, Reason: err.Error()}
	}
	return nil
}
