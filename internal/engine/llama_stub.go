//go:build !llama

package engine

// Built reports whether this binary links the native library.
const Built = false

type llamaEngine struct{}

// NewLlama returns an engine that refuses to load. Build with -tags=llama
// for real inference.
func NewLlama() Engine { return llamaEngine{} }

func (llamaEngine) LoadWeights(string, LoadParams) (Weights, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
