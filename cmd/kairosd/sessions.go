package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kairos/internal/history"
	"kairos/internal/service"
)

func newSessionsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse, export and delete saved conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("sessions requires a subcommand: list|show|export|clear|delete")
		},
	}
	cmd.AddCommand(
		sessionsListCmd(g),
		sessionsShowCmd(g),
		sessionsExportCmd(g),
		sessionsClearCmd(g),
		sessionsDeleteCmd(g),
	)
	return cmd
}

func parseSessionID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return id, nil
}

func sessionsListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				list, err := svc.Sessions(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tMODEL\tMESSAGES\tUPDATED")
				for _, s := range list {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", s.ID, s.Title, s.Model, s.MessageCount, humanize.Time(s.UpdatedAt))
				}
				return tw.Flush()
			})
		},
	}
}

func sessionsShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a conversation as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				return svc.ExportSession(ctx, id, history.Text, cmd.OutOrStdout())
			})
		},
	}
}

func sessionsExportCmd(g *globalFlags) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:     "export ID",
		Short:   "Export a conversation as Markdown, JSON or text",
		Example: "  kairosd sessions export 3 --format md --out sky.md\n  kairosd sessions export 3 --format json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			f, err := history.ParseFormat(format)
			if err != nil {
				return err
			}
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				if out == "" || out == "-" {
					return svc.ExportSession(ctx, id, f, cmd.OutOrStdout())
				}
				return exportToFile(ctx, svc, id, f, out)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "md", "Export format: md|json|txt")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

// exportToFile writes the export to path, removing a partial file on error.
func exportToFile(ctx context.Context, svc *service.Service, id int64, f history.Format, path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return svc.ExportSession(ctx, id, f, file)
}

func sessionsClearCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear ID",
		Short: "Remove the messages of a conversation and keep the conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				return svc.ClearSession(ctx, id)
			})
		},
	}
}

func sessionsDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation and its messages",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				if err := svc.DeleteSession(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted session %d\n", id)
				return nil
			})
		},
	}
}
