package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"kairos/internal/httpapi"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr         string
		model        string
		corsOrigins  string
		maxBodyBytes int64
		chatTimeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Example: "  kairosd serve --addr 127.0.0.1:5000 --model tinyllama-1.1b-chat.Q4_K_M.gguf\n" +
			"  kairosd serve --config kairos.yaml --cors-origins '*'",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, cfg, log, err := g.open(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Addr
			}
			if model == "" {
				model = cfg.DefaultModel
			}
			origins := splitCSV(corsOrigins)
			if len(origins) == 0 {
				origins = cfg.CORSOrigins
			}

			httpapi.SetLogger(log)
			httpapi.SetBaseContext(ctx)
			httpapi.SetMaxBodyBytes(maxBodyBytes)
			httpapi.SetChatTimeout(chatTimeout)
			httpapi.SetCORSOptions(len(origins) > 0, origins, nil, nil)

			if model != "" {
				if err := svc.Load(ctx, model, nil); err != nil {
					log.Error().Err(err).Str("model", model).Msg("default model failed to load")
				}
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewMux(svc),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Str("models_dir", cfg.ModelsDir).Msg("kairosd listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			var serveErr error
			select {
			case <-ctx.Done():
			case serveErr = <-errCh:
			}
			log.Info().Msg("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serveErr != nil {
				serveErr = fmt.Errorf("serve: %w", serveErr)
			}
			return multierr.Combine(
				serveErr,
				srv.Shutdown(sctx),
				svc.Shutdown(sctx),
			)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "HTTP listen address (default from config or 127.0.0.1:5000)")
	f.StringVar(&model, "model", "", "Model to load at startup")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; empty disables CORS")
	f.Int64Var(&maxBodyBytes, "max-body-bytes", 1<<20, "Maximum JSON request body size")
	f.DurationVar(&chatTimeout, "chat-timeout", 0, "Per-request generation timeout (0 disables)")
	return cmd
}
