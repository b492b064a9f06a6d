package hardware

import "strings"

// GPU is one display adapter as reported by a detector.
type GPU struct {
	Name        string
	MemoryBytes int64
}

func (g GPU) isNVIDIA() bool { return containsFold(g.Name, "nvidia") }

func (g GPU) isAMD() bool { return containsFold(g.Name, "amd") || containsFold(g.Name, "radeon") }

func (g GPU) isIntegrated() bool {
	return containsFold(g.Name, "intel") || containsFold(g.Name, "microsoft basic")
}

// selectGPU picks the adapter to report: the first NVIDIA card, else the
// first AMD card, else the last other discrete card, else the first adapter.
func selectGPU(gpus []GPU) (GPU, bool) {
	var best GPU
	found, foundNVIDIA, foundAMD := false, false, false
	for _, g := range gpus {
		switch {
		case g.isNVIDIA() && !foundNVIDIA:
			best, found, foundNVIDIA = g, true, true
		case g.isAMD() && !foundNVIDIA && !foundAMD:
			best, found, foundAMD = g, true, true
		case !foundNVIDIA && !foundAMD && !g.isIntegrated():
			best, found = g, true
		case !found:
			best, found = g, true
		}
	}
	return best, found
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
