// Package events carries lifecycle notifications (downloads, loads, tokens,
// stats) from the core components to whoever is listening.
package events

// Event names published by the catalog, manager and generator.
const (
	DownloadStarted   = "download_started"
	DownloadCompleted = "download_completed"
	DownloadPaused    = "download_paused"
	DownloadFailed    = "download_failed"
	ModelLoading      = "model_loading"
	LoadAttemptFailed = "model_load_attempt_failed"
	ModelLoaded       = "model_loaded"
	ModelLoadFailed   = "model_load_failed"
	ModelUnloaded     = "model_unloaded"
	TokenGenerated    = "token_generated"
	StatsUpdated      = "stats_updated"
)

// Event represents a lifecycle event.
// Minimal and stable: name + model name and optional fields via key/values.
type Event struct {
	Name   string         `json:"name"`
	Model  string         `json:"model,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// Noop drops events.
type Noop struct{}

func (Noop) Publish(Event) {}

// OrNoop returns p, or Noop when p is nil.
func OrNoop(p Publisher) Publisher {
	if p == nil {
		return Noop{}
	}
	return p
}
