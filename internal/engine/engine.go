// Package engine is the boundary to the native inference library. A loaded
// model is a Weights handle; generation runs on a Context derived from it.
package engine

import (
	"context"
	"errors"
)

// LoadParams are fixed at load time.
type LoadParams struct {
	ContextSize int
	GPULayers   int
	Threads     int
}

// GenerateOptions bound a single generation.
type GenerateOptions struct {
	MaxTokens   int
	Stop        []string
	Temperature float32
	TopP        float32
	TopK        int
	Threads     int
}

// Engine loads model weights.
type Engine interface {
	// LoadWeights loads the model at path. The error is the native failure
	// text when the library rejects the parameters or runs out of memory.
	LoadWeights(path string, p LoadParams) (Weights, error)
}

// Weights is a loaded model. Close releases its native memory.
type Weights interface {
	NewContext(contextSize int) (Context, error)
	Close() error
}

// Context holds the generation state for one conversation.
type Context interface {
	// StreamTokens generates from prompt and calls onToken for every raw
	// token in order. Returning false from onToken stops generation. It
	// returns ctx.Err() when stopped by cancellation.
	StreamTokens(ctx context.Context, prompt string, opts GenerateOptions, onToken func(string) bool) error
	Close() error
}

// TokenCounter is implemented by contexts that can tokenize text exactly.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable signals that the native library is not part of
// this build.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
