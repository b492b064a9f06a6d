// Package planner decides how many transformer layers to offload to the GPU
// and the fallback ladder tried when a load fails.
package planner

import "kairos/internal/hardware"

const (
	gib = float64(1 << 30)

	// unknownSizeGiB is assumed when the model size is not known.
	unknownSizeGiB = 4.0
	// overhead is added to the per-layer cost for activations and scratch.
	overhead = 1.2
	// reservedVRAMGiB is kept free for the KV cache and the desktop.
	reservedVRAMGiB = 1.5
	minGPULayers    = 5
	minGPUVRAMGiB   = 2.0
	maxGPULayers    = 100
)

// EstimateLayers guesses the transformer block count from the file size.
func EstimateLayers(sizeBytes int64) int {
	size := sizeGiB(sizeBytes)
	switch {
	case size < 1:
		return 22
	case size < 2:
		return 24
	case size < 3:
		return 26
	case size < 5:
		return 32
	case size < 8:
		return 40
	default:
		return 60
	}
}

// Primary returns the layer count to offload first.
func Primary(profile hardware.Profile, sizeBytes int64) int {
	return PrimaryWithLayers(profile, sizeBytes, 0)
}

// PrimaryWithLayers is Primary with a known block count, as read from the
// model file header. A non-positive blockCount falls back to the estimate.
func PrimaryWithLayers(profile hardware.Profile, sizeBytes int64, blockCount int) int {
	if !profile.Selected.UsesGPU() {
		return 0
	}
	layers := blockCount
	if layers <= 0 {
		layers = EstimateLayers(sizeBytes)
	}
	size := sizeGiB(sizeBytes)
	vram := float64(profile.GPUMemoryBytes) / gib

	perLayer := size / float64(layers) * overhead
	usable := max(0, vram-reservedVRAMGiB)
	byVRAM := int(usable / perLayer)

	n := min(layers, byVRAM)
	// the floor never exceeds the model's own block count
	if n < minGPULayers && vram >= minGPUVRAMGiB {
		n = min(layers, minGPULayers)
	}
	return max(0, min(n, maxGPULayers))
}

// Plan returns the ordered layer counts to try: the primary count, then half,
// then a quarter, then 0 (CPU only). CPU and NPU backends get [0].
func Plan(profile hardware.Profile, sizeBytes int64) []int {
	return Ladder(Primary(profile, sizeBytes))
}

// PlanWithLayers is Plan with a known block count.
func PlanWithLayers(profile hardware.Profile, sizeBytes int64, blockCount int) []int {
	return Ladder(PrimaryWithLayers(profile, sizeBytes, blockCount))
}

// Ladder expands a primary count into the fallback sequence.
func Ladder(primary int) []int {
	if primary <= 0 {
		return []int{0}
	}
	return []int{primary, max(1, primary/2), max(1, primary/4), 0}
}

func sizeGiB(sizeBytes int64) float64 {
	if sizeBytes <= 0 {
		return unknownSizeGiB
	}
	return float64(sizeBytes) / gib
}
