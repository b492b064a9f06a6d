package hardware

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Options configure an Inventory.
type Options struct {
	Detectors     Detectors
	VRAMCorrector VRAMCorrector
	Logger        *zerolog.Logger
}

// Inventory detects hardware once and serves the cached Profile until
// ClearCache is called. It is safe for concurrent use.
type Inventory struct {
	mu        sync.Mutex
	cached    *Profile
	detectors Detectors
	correct   VRAMCorrector
	log       zerolog.Logger
}

// NewInventory returns an Inventory with defaults applied.
func NewInventory(opts Options) *Inventory {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	correct := opts.VRAMCorrector
	if correct == nil {
		correct = CorrectVRAM
	}
	return &Inventory{
		detectors: opts.Detectors.withDefaults(log),
		correct:   correct,
		log:       log,
	}
}

// Detect returns the hardware profile, probing on first use. It never fails.
func (p *Inventory) Detect() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detectLocked().clone()
}

func (p *Inventory) detectLocked() *Profile {
	if p.cached != nil {
		return p.cached
	}
	prof := p.scan()
	p.cached = &prof
	p.log.Info().
		Str("gpu", prof.GPUName).
		Int64("vram", prof.GPUMemoryBytes).
		Int64("ram", prof.TotalRAMBytes).
		Str("recommended", string(prof.Recommended)).
		Msg("hardware detected")
	return p.cached
}

func (p *Inventory) scan() Profile {
	var prof Profile

	total, avail, err := safeCall2(p.detectors.Memory)
	if err != nil || total <= 0 {
		p.log.Warn().Err(err).Msg("memory detection failed; assuming 8 GiB")
		total, avail = fallbackRAM, 0
	}
	prof.TotalRAMBytes, prof.AvailableRAMBytes = total, avail

	func() {
		defer func() { _ = recover() }()
		prof.CPUName, prof.PhysicalCores = p.detectors.CPU()
	}()
	if prof.PhysicalCores <= 0 {
		prof.PhysicalCores = 1
	}

	gpus, err := safeCall(p.detectors.GPUs)
	if err != nil {
		p.log.Warn().Err(err).Msg("gpu detection failed")
		prof.GPUName = "Unknown"
	} else {
		for i := range gpus {
			gpus[i].MemoryBytes = p.correct(gpus[i].Name, gpus[i].MemoryBytes)
		}
		if g, ok := selectGPU(gpus); ok {
			prof.GPUName, prof.GPUMemoryBytes = g.Name, g.MemoryBytes
		}
	}

	prof.HasCUDA = containsFold(prof.GPUName, "nvidia")
	if ok, err := safeCall(p.detectors.DirectML); err != nil {
		p.log.Debug().Err(err).Msg("directml detection failed")
	} else {
		prof.HasDirectML = ok
	}
	if ok, err := safeCall(p.detectors.NPU); err != nil {
		p.log.Debug().Err(err).Msg("npu detection failed")
	} else {
		prof.HasNPU = ok
	}

	prof.AvailableBackends = []Backend{BackendCPU}
	if prof.HasCUDA {
		prof.AvailableBackends = append(prof.AvailableBackends, BackendCUDA)
	}
	if prof.HasDirectML {
		prof.AvailableBackends = append(prof.AvailableBackends, BackendDirectML)
	}
	if prof.HasNPU {
		prof.AvailableBackends = append(prof.AvailableBackends, BackendNPU)
	}
	prof.Recommended = recommend(prof)
	prof.Selected = prof.Recommended
	return prof
}

// ClearCache forces the next Detect to re-detect.
func (p *Inventory) ClearCache() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// SetSelectedBackend records the backend the user picked. Auto resolves to
// the recommended backend. Detection runs first when nothing is cached.
func (p *Inventory) SetSelectedBackend(b Backend) Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof := p.detectLocked()
	if b == BackendAuto || b == "" {
		b = prof.Recommended
	}
	prof.Selected = b
	return prof.clone()
}

// RecommendedBackend returns the recommended backend of the current profile.
func (p *Inventory) RecommendedBackend() Backend {
	return p.Detect().Recommended
}

// IsBackendAvailable reports whether b is usable on this machine.
func (p *Inventory) IsBackendAvailable(b Backend) bool {
	if b == BackendAuto {
		return true
	}
	return p.Detect().IsAvailable(b)
}

func safeCall[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return fn()
}

func safeCall2(fn func() (int64, int64, error)) (a, b int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return fn()
}
