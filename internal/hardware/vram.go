package hardware

import "strings"

const gib = int64(1) << 30

// minDirectMLVRAM is the VRAM floor above which DirectML is recommended.
const minDirectMLVRAM = 2 * gib

// uint32 capped adapter memory reports land in this window.
const (
	cappedVRAMLow  = int64(4290772992)
	cappedVRAMHigh = int64(4294967296)
)

// VRAMCorrector returns the corrected VRAM for an adapter whose reported
// memory may be capped by a 32-bit field.
type VRAMCorrector func(gpuName string, reported int64) int64

type knownVRAM struct {
	substr string
	bytes  int64
}

// knownVRAMTable is checked in order, so more specific names come first.
var knownVRAMTable = []knownVRAM{
	// NVIDIA RTX 50
	{"5090", 32 * gib},
	{"5080", 16 * gib},
	{"5070 Ti", 16 * gib},
	{"5070", 12 * gib},
	// NVIDIA RTX 40
	{"4090", 24 * gib},
	{"4080", 16 * gib},
	{"4070 Ti", 16 * gib},
	{"4070Ti", 16 * gib},
	{"4070", 12 * gib},
	// NVIDIA RTX 30
	{"3090", 24 * gib},
	{"3080 Ti", 12 * gib},
	{"3080Ti", 12 * gib},
	{"3080", 10 * gib},
	{"3070 Ti", 8 * gib},
	{"3070Ti", 8 * gib},
	{"3070", 8 * gib},
	// AMD RX 7000
	{"7900 XTX", 24 * gib},
	{"7900 XT", 20 * gib},
	{"7800 XT", 16 * gib},
	{"7700 XT", 12 * gib},
	// AMD RX 6000
	{"6900", 16 * gib},
	{"6800", 16 * gib},
	{"6700", 12 * gib},
}

// CorrectVRAM is the default VRAMCorrector. Values above 4 GiB are trusted;
// otherwise known models get their real capacity and unknown adapters sitting
// at the 32-bit ceiling are assumed to have 8 GiB.
func CorrectVRAM(gpuName string, reported int64) int64 {
	if reported <= 0 || reported > 4*gib {
		return reported
	}
	lower := strings.ToLower(gpuName)
	for _, k := range knownVRAMTable {
		if strings.Contains(lower, strings.ToLower(k.substr)) {
			return k.bytes
		}
	}
	if reported >= cappedVRAMLow && reported <= cappedVRAMHigh {
		return 8 * gib
	}
	return reported
}
