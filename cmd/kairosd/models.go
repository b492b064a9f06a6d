package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"kairos/internal/catalog"
	"kairos/internal/service"
)

func newModelsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("models requires a subcommand: list|download|resume|delete|verify|inspect|add|remove")
		},
	}
	cmd.AddCommand(
		modelsListCmd(g),
		modelsDownloadCmd(g),
		modelsResumeCmd(g),
		modelsDeleteCmd(g),
		modelsVerifyCmd(g),
		modelsInspectCmd(g),
		modelsAddCmd(g),
		modelsRemoveCmd(g),
	)
	return cmd
}

// withService opens the service, runs fn and shuts the service down.
func withService(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	svc, _, _, err := g.open(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, svc)
	if serr := svc.Shutdown(context.Background()); err == nil {
		err = serr
	}
	return err
}

func modelsListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List catalog entries and their download state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSIZE\tSTATE\tPROGRESS\tSOURCE")
				for _, d := range svc.Catalog().List() {
					src := "catalog"
					switch {
					case d.IsLocal:
						src = "local"
					case d.Custom:
						src = "custom"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\n", d.Name, humanize.IBytes(uint64(max(d.SizeBytes, 0))), d.State, d.Progress, src)
				}
				return tw.Flush()
			})
		},
	}
}

func modelsDownloadCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "download NAME",
		Short: "Download the weights of a model (Ctrl+C pauses)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				return fetchWithBar(cmd, args[0], func(progress func(float64)) error {
					return svc.Download(ctx, args[0], progress)
				})
			})
		},
	}
}

func modelsResumeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resume NAME",
		Short: "Continue a paused or failed download from its partial file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				return fetchWithBar(cmd, args[0], func(progress func(float64)) error {
					return svc.Resume(ctx, args[0], progress)
				})
			})
		},
	}
}

// fetchWithBar runs fetch with a progress bar on stderr. A paused transfer
// is reported, not returned as an error.
func fetchWithBar(cmd *cobra.Command, name string, fetch func(progress func(float64)) error) error {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	err := fetch(func(pct float64) { _ = bar.Set(int(pct)) })
	_ = bar.Finish()
	if catalog.IsPaused(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "download paused; run 'kairosd models resume %s' to continue\n", name)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s\n", name)
	return nil
}

func modelsDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete downloaded weights and any partial download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				return svc.Delete(args[0])
			})
		},
	}
}

func modelsVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify NAME",
		Short: "Check that the weights file is complete and readable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				if err := svc.Catalog().Verify(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
				return nil
			})
		},
	}
}

func modelsInspectCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect NAME",
		Short: "Show GGUF metadata of a downloaded model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				info, err := svc.Catalog().Inspect(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:          %s\n", info.Name)
				fmt.Fprintf(out, "Architecture:  %s\n", info.Architecture)
				fmt.Fprintf(out, "Parameters:    %s\n", info.Parameters)
				fmt.Fprintf(out, "File type:     %s\n", info.FileType)
				fmt.Fprintf(out, "Layers:        %d\n", info.BlockCount)
				fmt.Fprintf(out, "Context:       %d\n", info.ContextLength)
				fmt.Fprintf(out, "Chat template: %t\n", info.ChatTemplate != "")
				return nil
			})
		},
	}
}

func modelsAddCmd(g *globalFlags) *cobra.Command {
	var m catalog.CustomModel
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a custom model from a local file or a download URL",
		Example: "  kairosd models add --file ~/models/mistral.gguf\n" +
			"  kairosd models add --url https://example.com/phi.gguf --name phi.gguf",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				d, err := svc.AddCustom(ctx, m)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", d.Name, d.State)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&m.Name, "name", "", "Catalog name (default: file name)")
	f.StringVar(&m.DisplayName, "display-name", "", "Human-friendly name")
	f.StringVar(&m.Description, "description", "", "Description")
	f.StringVar(&m.FilePath, "file", "", "Path to a local GGUF file")
	f.StringVar(&m.DownloadURL, "url", "", "Download URL")
	f.Int64Var(&m.SizeBytes, "size", 0, "Expected size in bytes (URL models)")
	return cmd
}

func modelsRemoveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a custom model from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, g, func(ctx context.Context, svc *service.Service) error {
				return svc.RemoveCustom(ctx, args[0])
			})
		},
	}
}
