package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kairos/internal/hardware"
)

func newHardwareCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hardware",
		Short: "Show detected hardware and backend selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)
			inv := hardware.NewInventory(hardware.Options{Logger: &log})
			p := inv.SetSelectedBackend(hardware.ParseBackend(cfg.Backend))
			printProfile(cmd, p)
			return nil
		},
	}
}

func printProfile(cmd *cobra.Command, p hardware.Profile) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "CPU:          %s (%d cores)\n", p.CPUName, p.PhysicalCores)
	fmt.Fprintf(out, "RAM:          %s total, %s available\n", humanize.IBytes(uint64(p.TotalRAMBytes)), humanize.IBytes(uint64(p.AvailableRAMBytes)))
	fmt.Fprintf(out, "GPU:          %s (%s)\n", p.GPUName, humanize.IBytes(uint64(max(p.GPUMemoryBytes, 0))))
	fmt.Fprintf(out, "Backends:     %s\n", strings.Join(p.BackendNames(), ", "))
	fmt.Fprintf(out, "Recommended:  %s\n", p.Recommended)
	fmt.Fprintf(out, "Selected:     %s\n", p.Selected)
	fmt.Fprintf(out, "Status:       %s\n", p.StatusMessage())
}
