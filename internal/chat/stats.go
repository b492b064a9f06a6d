package chat

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a snapshot of one generation.
type Stats struct {
	TokensPerSecond float64
	TotalTokens     int
	PromptTokens    int
	GeneratedTokens int
	Elapsed         time.Duration
	// MemoryDelta is the change in resident memory since generation started.
	MemoryDelta int64
	Backend     string
}

// memorySampler reads the resident set size of this process.
type memorySampler struct {
	proc *process.Process
}

func newMemorySampler() *memorySampler {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &memorySampler{}
	}
	return &memorySampler{proc: p}
}

// RSS returns the resident set size, or 0 when unavailable.
func (s *memorySampler) RSS() int64 {
	if s == nil || s.proc == nil {
		return 0
	}
	mi, err := s.proc.MemoryInfo()
	if err != nil || mi == nil {
		return 0
	}
	return int64(mi.RSS)
}

func computeStats(elapsed time.Duration, prompt, generated int, memDelta int64, backend string) Stats {
	st := Stats{
		PromptTokens:    prompt,
		GeneratedTokens: generated,
		TotalTokens:     prompt + generated,
		Elapsed:         elapsed,
		MemoryDelta:     memDelta,
		Backend:         backend,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		st.TokensPerSecond = float64(generated) / secs
	}
	return st
}
