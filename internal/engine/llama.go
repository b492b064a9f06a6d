//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// Built reports whether this binary links the native library.
const Built = true

type llamaEngine struct{}

// NewLlama returns the go-llama.cpp engine.
func NewLlama() Engine { return llamaEngine{} }

func (llamaEngine) LoadWeights(path string, p LoadParams) (Weights, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	opts := []llama.ModelOption{
		llama.SetContext(p.ContextSize),
		llama.SetMMap(true),
	}
	if p.GPULayers > 0 {
		opts = append(opts, llama.SetGPULayers(p.GPULayers))
	}
	m, err := llama.New(path, opts...)
	if err != nil {
		return nil, err
	}
	return &llamaWeights{model: m, threads: p.Threads}, nil
}

type llamaWeights struct {
	model   *llama.LLama
	threads int
}

// NewContext returns a view over the model. go-llama.cpp keeps the
// evaluation context inside the model handle, sized at load time.
func (w *llamaWeights) NewContext(int) (Context, error) {
	if w.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	return &llamaContext{w: w}, nil
}

func (w *llamaWeights) Close() error {
	if w.model != nil {
		w.model.Free()
		w.model = nil
	}
	return nil
}

type llamaContext struct{ w *llamaWeights }

func (c *llamaContext) StreamTokens(ctx context.Context, prompt string, opts GenerateOptions, onToken func(string) bool) error {
	if c.w.model == nil {
		return errors.New("llama model not initialized")
	}
	po := predictOptions(opts, c.w.threads)
	po = append(po, llama.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return onToken(tok)
	}))
	_, err := c.w.model.Predict(prompt, po...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *llamaContext) Close() error { return nil }

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

func predictOptions(o GenerateOptions, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, o.MaxTokens)),
		llama.SetThreads(max(1, zn(o.Threads, threads))),
		llama.SetTopP(zf(o.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(o.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(o.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(llama.DefaultOptions.Penalty),
	}
	if len(o.Stop) > 0 {
		po = append(po, llama.SetStopWords(o.Stop...))
	}
	return po
}
