package manager

import (
	"github.com/rs/zerolog"

	"kairos/internal/catalog"
	"kairos/internal/engine"
	"kairos/internal/events"
	"kairos/internal/hardware"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultContextSize = 4096
)

// Catalog is the subset of the model catalog the manager drives.
type Catalog interface {
	EnsureDownloaded(name string) (catalog.Descriptor, error)
	SetActive(name string)
	SetLoadError(name, msg string)
	BlockCount(name string) int
}

// Hardware returns the current hardware profile.
type Hardware interface {
	Detect() hardware.Profile
}

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Engine   engine.Engine
	Catalog  Catalog
	Hardware Hardware
	// ContextSize of every created context (default 4096).
	ContextSize int
	Threads     int
	// InspectGGUF makes the planner use the block count from the file header.
	InspectGGUF bool
	Publisher   events.Publisher
	Logger      *zerolog.Logger
}
