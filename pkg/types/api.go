package types

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	// Conversation so far, oldest first. Must not be empty.
	Messages []ChatMessage `json:"messages"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	// Name of the model that produced the answer.
	// example: tinyllama-1.1b-chat.Q4_K_M.gguf
	Model string `json:"model" example:"tinyllama-1.1b-chat.Q4_K_M.gguf"`
	// Complete generated text.
	Content string `json:"content"`
	// Number of generated tokens.
	// example: 42
	TokenCount int `json:"token_count" example:"42"`
}

// ChatChunk is the payload of each SSE event emitted by POST /chat/stream.
type ChatChunk struct {
	Content string `json:"content"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
	// Active model name or "none".
	// example: none
	Model string `json:"model" example:"none"`
	// example: 1.0.0
	Version string `json:"version" example:"1.0.0"`
}

// ModelInfo is one entry of GET /models (OpenAI list shape).
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// example: list
	Object string      `json:"object" example:"list"`
	Data   []ModelInfo `json:"data"`
}

// APIError is the inner error object of ErrorResponse.
type APIError struct {
	// example: Messages array is required
	Message string `json:"message" example:"Messages array is required"`
	// example: invalid_request_error
	Type string `json:"type" example:"invalid_request_error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code,omitempty" example:"400"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// HardwareStatus summarizes the detected hardware for /status.
type HardwareStatus struct {
	// example: NVIDIA GeForce RTX 4070
	GPUName string `json:"gpu_name,omitempty" example:"NVIDIA GeForce RTX 4070"`
	// example: 12884901888
	GPUMemoryBytes int64 `json:"gpu_memory_bytes" example:"12884901888"`
	// example: 34359738368
	TotalRAMBytes int64 `json:"total_ram_bytes" example:"34359738368"`
	// example: cuda
	RecommendedBackend string `json:"recommended_backend" example:"cuda"`
	// example: cuda
	SelectedBackend string `json:"selected_backend" example:"cuda"`
	// example: ["cpu","cuda"]
	AvailableBackends []string `json:"available_backends"`
	// example: RAM: 32 GB | GPU: NVIDIA GeForce RTX 4070 | CUDA ✓
	Message string `json:"message" example:"RAM: 32 GB | GPU: NVIDIA GeForce RTX 4070 | CUDA ✓"`
}

// StatsResponse mirrors the last inference statistics snapshot.
type StatsResponse struct {
	TokensPerSecond float64 `json:"tokens_per_second"`
	TotalTokens     int     `json:"total_tokens"`
	PromptTokens    int     `json:"prompt_tokens"`
	GeneratedTokens int     `json:"generated_tokens"`
	ElapsedMillis   int64   `json:"elapsed_ms"`
	MemoryDelta     int64   `json:"memory_delta_bytes"`
	Backend         string  `json:"backend"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Session state (unloaded, loading, loaded, unloading, failed).
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Active model name, empty when nothing is loaded.
	ActiveModel string `json:"active_model,omitempty"`
	// GPU layers actually offloaded for the active model.
	// example: 32
	GPULayers int `json:"gpu_layers" example:"32"`
	// Backend in effect for the active model.
	// example: cuda
	Backend string `json:"backend,omitempty" example:"cuda"`
	// Last load error observed by the manager.
	LastError string `json:"last_error,omitempty"`
	// Hardware summary.
	Hardware HardwareStatus `json:"hardware"`
	// Catalog entries.
	Models []Model `json:"models"`
	// Last generation statistics.
	LastStats *StatsResponse `json:"last_stats,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Number of generations currently queued behind the in-flight one.
	QueueLen int `json:"queue_len"`
	// 1 while a generation is running.
	Inflight int `json:"inflight"`
}
