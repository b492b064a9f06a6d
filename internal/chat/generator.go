package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"kairos/internal/engine"
	"kairos/internal/events"
	"kairos/internal/manager"
)

// NoModelMessage is the only fragment produced when nothing is loaded.
const NoModelMessage = "Error: No model loaded. Please select and load a model first."

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxTokens = 2048
	statsEvery       = 10
)

// Sessions hands out leases on the loaded session.
type Sessions interface {
	Acquire() (*manager.Lease, error)
}

// Retriever returns document text relevant to a query, or "".
type Retriever interface {
	ContextForQuery(query string) string
}

// Config configures a Generator.
type Config struct {
	Sessions  Sessions
	Retriever Retriever
	MaxTokens int
	Publisher events.Publisher
	// OnStats, when set, receives every stats snapshot.
	OnStats func(Stats)
	Logger  *zerolog.Logger
}

// Generator streams completions from the loaded session.
type Generator struct {
	sessions  Sessions
	retriever Retriever
	maxTokens int
	pub       events.Publisher
	onStats   func(Stats)
	log       zerolog.Logger
	mem       *memorySampler

	mu        sync.Mutex
	lastStats Stats
}

// New returns a Generator with defaults applied.
func New(cfg Config) *Generator {
	g := &Generator{
		sessions:  cfg.Sessions,
		retriever: cfg.Retriever,
		maxTokens: cfg.MaxTokens,
		pub:       events.OrNoop(cfg.Publisher),
		onStats:   cfg.OnStats,
		log:       zerolog.Nop(),
		mem:       newMemorySampler(),
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if cfg.Logger != nil {
		g.log = *cfg.Logger
	}
	return g
}

// LastStats returns the most recent stats snapshot.
func (g *Generator) LastStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastStats
}

// Stream generates a reply to msgs and calls onToken with every cleaned,
// non-empty fragment in order. Returning false from onToken stops early.
//
// When no model is loaded onToken receives NoModelMessage and the error is
// manager.ErrNoModelLoaded. An engine failure is reported to onToken as a
// final error fragment and returned. Cancellation returns ctx.Err() with no
// extra fragment. The session stays loaded in every case.
func (g *Generator) Stream(ctx context.Context, msgs []Message, onToken func(string) bool) (Stats, error) {
	lease, err := g.sessions.Acquire()
	if err != nil {
		onToken(NoModelMessage)
		return Stats{}, err
	}
	defer lease.Release()

	retrieved := ""
	if g.retriever != nil {
		retrieved = g.retriever.ContextForQuery(LatestUserMessage(msgs))
	}
	prompt := BuildPrompt(msgs, retrieved)
	promptTokens := countTokens(lease.Context, prompt)
	backend := string(lease.Backend)

	start := time.Now()
	startMem := g.mem.RSS()
	raw := 0
	stopped := false
	snapshot := func() Stats {
		st := computeStats(time.Since(start), promptTokens, raw, g.mem.RSS()-startMem, backend)
		g.publishStats(lease.Model, st)
		return st
	}

	err = lease.Context.StreamTokens(ctx, prompt, engine.GenerateOptions{
		MaxTokens: g.maxTokens,
		Stop:      StopSequences,
	}, func(tok string) bool {
		raw++
		generationTokensTotal.Inc()
		if clean := StripArtifacts(tok); clean != "" {
			g.pub.Publish(events.Event{Name: events.TokenGenerated, Model: lease.Model, Fields: map[string]any{"token": clean}})
			if !onToken(clean) {
				stopped = true
				return false
			}
		}
		if raw%statsEvery == 0 {
			snapshot()
		}
		return true
	})
	st := snapshot()
	generationTokensPerSecond.Set(st.TokensPerSecond)

	switch {
	case err == nil || stopped:
		return st, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		g.log.Debug().Str("model", lease.Model).Int("tokens", raw).Msg("generation cancelled")
		if ctx.Err() != nil {
			return st, ctx.Err()
		}
		return st, err
	default:
		g.log.Error().Err(err).Str("model", lease.Model).Msg("generation failed")
		onToken("\n\nError: " + err.Error())
		return st, err
	}
}

func (g *Generator) publishStats(model string, st Stats) {
	g.mu.Lock()
	g.lastStats = st
	g.mu.Unlock()
	if g.onStats != nil {
		g.onStats(st)
	}
	g.pub.Publish(events.Event{Name: events.StatsUpdated, Model: model, Fields: map[string]any{
		"tokens_per_second": st.TokensPerSecond,
		"generated_tokens":  st.GeneratedTokens,
		"elapsed_ms":        st.Elapsed.Milliseconds(),
	}})
}

// GenerateStream returns the reply as a lazy sequence of fragments. The
// sequence can be ranged over once; breaking out of the loop stops
// generation.
func (g *Generator) GenerateStream(ctx context.Context, msgs []Message) iter.Seq[string] {
	var used atomic.Bool
	return func(yield func(string) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		_, _ = g.Stream(ctx, msgs, yield)
	}
}

// Generate drains the stream into a single string.
func (g *Generator) Generate(ctx context.Context, msgs []Message) string {
	var b strings.Builder
	for tok := range g.GenerateStream(ctx, msgs) {
		b.WriteString(tok)
	}
	return b.String()
}

// countTokens uses the engine tokenizer when available and assumes four
// bytes per token otherwise.
func countTokens(c engine.Context, text string) int {
	if tc, ok := c.(engine.TokenCounter); ok {
		if n, err := tc.CountTokens(text); err == nil {
			return n
		}
	}
	return len(text) / 4
}
