// Package hardware detects RAM, GPU identity/VRAM and usable acceleration
// backends, and recommends one. Detection is cached per Inventory and never fails:
// every probing error degrades to a lower-confidence default.
package hardware

import (
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// Backend identifies an execution backend for the inference engine.
type Backend string

const (
	BackendAuto     Backend = "auto"
	BackendCPU      Backend = "cpu"
	BackendCUDA     Backend = "cuda"
	BackendDirectML Backend = "directml"
	BackendNPU      Backend = "npu"
)

// ParseBackend maps a user string to a Backend. Unknown values map to auto.
func ParseBackend(s string) Backend {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return BackendCPU
	case "cuda":
		return BackendCUDA
	case "directml", "dml":
		return BackendDirectML
	case "npu":
		return BackendNPU
	default:
		return BackendAuto
	}
}

// UsesGPU reports whether the backend offloads layers to a GPU.
func (b Backend) UsesGPU() bool {
	return b == BackendCUDA || b == BackendDirectML
}

// Profile is an immutable snapshot of the detected hardware. Only Selected is
// changed after detection, through Inventory.SetSelectedBackend.
type Profile struct {
	TotalRAMBytes     int64
	AvailableRAMBytes int64
	CPUName           string
	PhysicalCores     int
	GPUName           string
	GPUMemoryBytes    int64
	HasCUDA           bool
	HasDirectML       bool
	HasNPU            bool
	AvailableBackends []Backend
	Recommended       Backend
	Selected          Backend
}

// IsAvailable reports whether b was detected as usable. CPU always is.
func (p Profile) IsAvailable(b Backend) bool {
	if b == BackendCPU {
		return true
	}
	return slices.Contains(p.AvailableBackends, b)
}

// StatusMessage renders a one-line hardware summary.
func (p Profile) StatusMessage() string {
	parts := []string{"RAM: " + formatBytes(p.TotalRAMBytes)}
	if p.GPUName != "" {
		parts = append(parts, "GPU: "+p.GPUName)
	}
	if p.HasCUDA {
		parts = append(parts, "CUDA ✓")
	} else if p.HasDirectML {
		parts = append(parts, "DirectML ✓")
	}
	if p.HasNPU {
		parts = append(parts, "NPU ✓")
	}
	return strings.Join(parts, " | ")
}

// BackendNames returns the available backends as strings.
func (p Profile) BackendNames() []string {
	out := make([]string, len(p.AvailableBackends))
	for i, b := range p.AvailableBackends {
		out[i] = string(b)
	}
	return out
}

func (p Profile) clone() Profile {
	p.AvailableBackends = slices.Clone(p.AvailableBackends)
	return p
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "N/A"
	}
	return humanize.IBytes(uint64(n))
}

// recommend applies the precedence CUDA > NPU > DirectML (with enough VRAM) > CPU.
func recommend(p Profile) Backend {
	switch {
	case p.HasCUDA:
		return BackendCUDA
	case p.HasNPU:
		return BackendNPU
	case p.HasDirectML && p.GPUMemoryBytes > minDirectMLVRAM:
		return BackendDirectML
	default:
		return BackendCPU
	}
}
