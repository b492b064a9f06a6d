package types

// Model is the wire view of a catalog entry returned by the CLI and /status.
type Model struct {
	// Unique catalog key, usually the GGUF file name.
	// example: tinyllama-1.1b-chat.Q4_K_M.gguf
	Name string `json:"name" example:"tinyllama-1.1b-chat.Q4_K_M.gguf"`
	// Human-friendly name.
	// example: TinyLlama 1.1B Chat
	DisplayName string `json:"display_name" example:"TinyLlama 1.1B Chat"`
	// Size of the weights file in bytes.
	// example: 668788096
	SizeBytes int64 `json:"size_bytes" example:"668788096"`
	// Download lifecycle state (not_started, downloading, paused, verifying, completed, failed).
	// example: completed
	DownloadState string `json:"download_state" example:"completed"`
	// Download progress percentage.
	// example: 100
	Progress float64 `json:"progress" example:"100"`
	// True when the weights file is present on disk.
	Downloaded bool `json:"downloaded"`
	// True for the single model currently loaded.
	Active bool `json:"active"`
	// True for user-added models persisted in the database.
	Custom bool `json:"custom,omitempty"`
	// Last load error, if any.
	LoadError string `json:"load_error,omitempty"`
	// Last download or verification error, if any.
	DownloadError string `json:"download_error,omitempty"`
	// True for models that point at a local file and are never downloaded.
	Local bool `json:"local,omitempty"`
}

// ChatMessage is one conversation turn in API requests.
type ChatMessage struct {
	// One of system, user, assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: Hello!
	Content string `json:"content" example:"Hello!"`
}
