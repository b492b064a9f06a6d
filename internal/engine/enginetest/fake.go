// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"

	"kairos/internal/engine"
)

// Fake is a scripted engine. The zero value loads any path and streams
// Tokens.
type Fake struct {
	// FailLoad, when set, decides whether loading with the given layer count
	// fails.
	FailLoad func(layers int) error
	// FailContext makes NewContext fail.
	FailContext error
	// Tokens are emitted by every generation.
	Tokens []string
	// FailAfter makes generation return FailErr after that many tokens
	// when FailErr is set.
	FailAfter int
	FailErr   error
	// Hold, when set, makes generation wait for a receive (or close) before
	// the first token.
	Hold <-chan struct{}

	mu      sync.Mutex
	loads   []engine.LoadParams
	prompts []string
	open    int
	closed  int
}

// LoadWeights records p and returns a handle unless FailLoad rejects it.
func (f *Fake) LoadWeights(path string, p engine.LoadParams) (engine.Weights, error) {
	f.mu.Lock()
	f.loads = append(f.loads, p)
	f.mu.Unlock()
	if path == "" {
		return nil, errors.New("empty path")
	}
	if f.FailLoad != nil {
		if err := f.FailLoad(p.GPULayers); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	f.open++
	f.mu.Unlock()
	return &weights{f: f}, nil
}

// Loads returns the parameters of every load attempt in order.
func (f *Fake) Loads() []engine.LoadParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.LoadParams(nil), f.loads...)
}

// Prompts returns every prompt passed to StreamTokens.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// Open returns the number of weights handles not yet closed.
func (f *Fake) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Closed returns how many weights handles were released.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type weights struct {
	f    *Fake
	once sync.Once
}

func (w *weights) NewContext(int) (engine.Context, error) {
	if w.f.FailContext != nil {
		return nil, w.f.FailContext
	}
	return &fakeContext{f: w.f}, nil
}

func (w *weights) Close() error {
	w.once.Do(func() {
		w.f.mu.Lock()
		w.f.open--
		w.f.closed++
		w.f.mu.Unlock()
	})
	return nil
}

type fakeContext struct{ f *Fake }

func (c *fakeContext) StreamTokens(ctx context.Context, prompt string, opts engine.GenerateOptions, onToken func(string) bool) error {
	c.f.mu.Lock()
	c.f.prompts = append(c.f.prompts, prompt)
	c.f.mu.Unlock()
	if c.f.Hold != nil {
		select {
		case <-c.f.Hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i, tok := range c.f.Tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.f.FailErr != nil && i == c.f.FailAfter {
			return c.f.FailErr
		}
		if opts.MaxTokens > 0 && i >= opts.MaxTokens {
			return nil
		}
		if !onToken(tok) {
			return ctx.Err()
		}
	}
	if c.f.FailErr != nil && c.f.FailAfter >= len(c.f.Tokens) {
		return c.f.FailErr
	}
	return nil
}

// CountTokens assumes four bytes per token.
func (c *fakeContext) CountTokens(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

func (c *fakeContext) Close() error { return nil }
