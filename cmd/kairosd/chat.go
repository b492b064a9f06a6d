package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"kairos/internal/chat"
)

func newChatCmd(g *globalFlags) *cobra.Command {
	var (
		model  string
		system string
		docs    []string
		stats   bool
		session int64
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "chat [flags] PROMPT",
		Short: "Load a model and stream a single reply",
		Example: "  kairosd chat --model tinyllama-1.1b-chat.Q4_K_M.gguf \"Why is the sky blue?\"\n" +
			"  kairosd chat --model phi.gguf --doc notes.md \"Summarize my notes\"\n" +
			"  kairosd chat --save \"Plan a trip\"   # prints the new session id\n" +
			"  kairosd chat --session 3 \"And the return leg?\"",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			svc, cfg, _, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Shutdown(context.Background())

			if model == "" {
				model = cfg.DefaultModel
			}
			if model == "" {
				return fmt.Errorf("no model given; pass --model or set default_model")
			}
			for _, p := range docs {
				if err := svc.Documents().AddFile(p); err != nil {
					return fmt.Errorf("document %s: %w", p, err)
				}
			}

			bar := progressbar.NewOptions(100,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("loading "+model),
				progressbar.OptionClearOnFinish(),
			)
			err = svc.Load(ctx, model, func(pct float64) { _ = bar.Set(int(pct)) })
			_ = bar.Finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			prompt := strings.Join(args, " ")
			write := func(tok string) bool {
				fmt.Fprint(out, tok)
				return true
			}

			var st chat.Stats
			if save && session == 0 {
				sess, err := svc.CreateSession(ctx, system)
				if err != nil {
					return err
				}
				session = sess.ID
				fmt.Fprintf(cmd.ErrOrStderr(), "session %d\n", session)
			}
			if session > 0 {
				st, err = svc.ChatInSession(ctx, session, prompt, write)
			} else {
				var msgs []chat.Message
				if system != "" {
					msgs = append(msgs, chat.Message{Role: chat.RoleSystem, Content: system})
				}
				msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: prompt})
				st, err = svc.Stream(ctx, msgs, write)
			}
			fmt.Fprintln(out)
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "[generation stopped]")
				err = nil
			}
			if stats {
				fmt.Fprintf(cmd.ErrOrStderr(), "%.1f tok/s | %d prompt + %d generated tokens | %s | mem %s%s | %s\n",
					st.TokensPerSecond, st.PromptTokens, st.GeneratedTokens, st.Elapsed.Round(time.Millisecond),
					sign(st.MemoryDelta), humanize.IBytes(uint64(abs(st.MemoryDelta))), st.Backend)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "", "Model to load (default from config)")
	f.StringVar(&system, "system", "", "System message")
	f.StringArrayVar(&docs, "doc", nil, "Plain-text document to use as retrieval context (repeatable)")
	f.BoolVar(&stats, "stats", true, "Print generation statistics to stderr")
	f.Int64Var(&session, "session", 0, "Continue and record a saved conversation")
	f.BoolVar(&save, "save", false, "Record the exchange as a new saved conversation")
	return cmd
}

func sign(n int64) string {
	if n < 0 {
		return "-"
	}
	return "+"
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
