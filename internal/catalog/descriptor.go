package catalog

// State is the download lifecycle state of a model.
type State string

const (
	StateNotStarted  State = "not_started"
	StateDownloading State = "downloading"
	StatePaused      State = "paused"
	StateVerifying   State = "verifying"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Descriptor is one catalog entry. Values returned by the catalog are copies.
type Descriptor struct {
	Name        string
	DisplayName string
	Description string
	Category    string
	Recommended bool
	SizeBytes   int64

	// URL is empty for local models.
	URL string
	// Path is where the weights live on disk.
	Path    string
	IsLocal bool
	Custom  bool

	State         State
	Progress      float64
	Downloaded    bool
	Active        bool
	LoadError     string
	DownloadError string
}
