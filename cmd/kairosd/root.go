package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kairos/internal/config"
	"kairos/internal/service"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	modelsDir  string
	database   string
	backend    string
	threads    int
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "kairosd",
		Short:         "Local model catalog, hardware-aware loader and chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", os.Getenv("KAIROS_CONFIG"), "Config file (.yaml/.yml/.json/.toml)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error (default from config or info)")
	pf.StringVar(&g.modelsDir, "models-dir", "", "Directory holding model weights")
	pf.StringVar(&g.database, "database", "", "SQLite database for custom models and saved conversations")
	pf.StringVar(&g.backend, "backend", "", "Inference backend: auto|cpu|cuda|directml|npu")
	pf.IntVar(&g.threads, "threads", 0, "Generation threads (0 = physical cores)")

	root.AddCommand(
		newServeCmd(g),
		newHardwareCmd(g),
		newModelsCmd(g),
		newChatCmd(g),
		newSessionsCmd(g),
	)
	return root
}

// load reads the config file (if any), applies flag overrides and defaults.
func (g *globalFlags) load() (config.Config, error) {
	var cfg config.Config
	if g.configPath != "" {
		c, err := config.Load(g.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.modelsDir != "" {
		cfg.ModelsDir = g.modelsDir
	}
	if g.database != "" {
		cfg.Database = g.database
	}
	if g.backend != "" {
		cfg.Backend = g.backend
	}
	if g.threads > 0 {
		cfg.Threads = g.threads
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
}

// open builds the service for a command. The caller must Shutdown it.
func (g *globalFlags) open(ctx context.Context) (*service.Service, config.Config, zerolog.Logger, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, cfg, zerolog.Nop(), err
	}
	log := newLogger(cfg.LogLevel)
	svc, err := service.New(ctx, service.Options{Config: cfg, Logger: &log})
	return svc, cfg, log, err
}

// splitCSV splits a comma-separated list, dropping empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
