package hardware

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/klauspost/cpuid/v2"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// fallbackRAM is reported when no memory source answers.
const fallbackRAM = 8 * gib

// Detectors are the raw detection functions used by an Inventory. Any nil field
// falls back to the platform default.
type Detectors struct {
	// Memory returns total and available system RAM in bytes.
	Memory func() (total, available int64, err error)
	// GPUs lists display adapters with their reported memory.
	GPUs func() ([]GPU, error)
	// DirectML reports whether the secondary GPU backend is usable.
	DirectML func() (bool, error)
	// NPU reports whether a neural processing unit is present.
	NPU func() (bool, error)
	// CPU returns the processor brand and physical core count.
	CPU func() (string, int)
}

// DefaultDetectors returns detectors backed by gopsutil and ghw.
func DefaultDetectors(log zerolog.Logger) Detectors {
	return Detectors{
		Memory:   detectMemory,
		GPUs:     func() ([]GPU, error) { return detectGPUs(log) },
		DirectML: detectDirectML,
		NPU:      detectNPU,
		CPU:      detectCPU,
	}
}

func (d Detectors) withDefaults(log zerolog.Logger) Detectors {
	def := DefaultDetectors(log)
	if d.Memory == nil {
		d.Memory = def.Memory
	}
	if d.GPUs == nil {
		d.GPUs = def.GPUs
	}
	if d.DirectML == nil {
		d.DirectML = def.DirectML
	}
	if d.NPU == nil {
		d.NPU = def.NPU
	}
	if d.CPU == nil {
		d.CPU = def.CPU
	}
	return d
}

func detectMemory() (int64, int64, error) {
	vm, err := mem.VirtualMemory()
	if err == nil && vm.Total > 0 {
		return int64(vm.Total), int64(vm.Available), nil
	}
	info, gerr := ghw.Memory()
	if gerr != nil {
		if err != nil {
			return 0, 0, err
		}
		return 0, 0, gerr
	}
	return info.TotalUsableBytes, 0, nil
}

func detectGPUs(log zerolog.Logger) ([]GPU, error) {
	info, err := ghw.GPU()
	if err != nil {
		return nil, err
	}
	var out []GPU
	for _, card := range info.GraphicsCards {
		if card == nil {
			continue
		}
		g := GPU{}
		if card.DeviceInfo != nil {
			var parts []string
			if card.DeviceInfo.Vendor != nil && card.DeviceInfo.Vendor.Name != "" {
				parts = append(parts, card.DeviceInfo.Vendor.Name)
			}
			if card.DeviceInfo.Product != nil && card.DeviceInfo.Product.Name != "" {
				parts = append(parts, card.DeviceInfo.Product.Name)
			}
			g.Name = strings.Join(parts, " ")
		}
		if card.Node != nil && card.Node.Memory != nil {
			g.MemoryBytes = card.Node.Memory.TotalUsableBytes
		}
		if g.Name == "" {
			g.Name = card.Address
		}
		out = append(out, g)
	}
	// PCI enumeration carries no VRAM for discrete NVIDIA cards on most hosts.
	for i := range out {
		if out[i].isNVIDIA() && out[i].MemoryBytes == 0 {
			if vram := nvidiaSMIMemory(log); vram > 0 {
				out[i].MemoryBytes = vram
			}
		}
	}
	return out, nil
}

// nvidiaSMIMemory returns the memory of the first NVIDIA GPU as reported by
// nvidia-smi, or 0 when the tool is missing.
func nvidiaSMIMemory(log zerolog.Logger) int64 {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		log.Debug().Err(err).Msg("nvidia-smi query failed")
		return 0
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	mib, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		log.Debug().Err(err).Str("output", line).Msg("unexpected nvidia-smi output")
		return 0
	}
	return mib * 1024 * 1024
}

func detectCPU() (string, int) {
	cores := cpuid.CPU.PhysicalCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	return cpuid.CPU.BrandName, cores
}

func detectDirectML() (bool, error) {
	if runtime.GOOS != "windows" {
		return false, nil
	}
	_, _, version, err := host.PlatformInformation()
	if err != nil {
		return false, err
	}
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return false, err
	}
	return n >= 10, nil
}

var npuMarkers = []string{"npu", "neural", "ai boost"}

func detectNPU() (bool, error) {
	info, err := ghw.PCI()
	if err != nil {
		return false, err
	}
	for _, dev := range info.Devices {
		if dev == nil {
			continue
		}
		var names []string
		if dev.Product != nil {
			names = append(names, dev.Product.Name)
		}
		if dev.Class != nil {
			names = append(names, dev.Class.Name)
		}
		if dev.Subclass != nil {
			names = append(names, dev.Subclass.Name)
		}
		for _, n := range names {
			for _, m := range npuMarkers {
				if containsFold(n, m) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}
