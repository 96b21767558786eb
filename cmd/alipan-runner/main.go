package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/semmidev/alipan-runner/internal/app"
	"github.com/semmidev/alipan-runner/internal/config"
	"github.com/semmidev/alipan-runner/internal/domain"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "alipan-runner",
		Short:         "Empty an Aliyun Drive folder once or on an interval",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, configPath)
		},
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "path to an optional yaml config file")
	flags.Bool("dry-run", false, "list and log files without deleting them")
	flags.Int("interval", 0, "seconds between iterations, 0 runs once")
	flags.String("log-level", "info", "debug, info, warn or error")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the runner version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("alipan-runner v%s\n", app.Version)
		},
	})

	return root
}

func run(parent context.Context, cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEndpoint) {
			return errors.New(app.EndpointHint(err))
		}
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	ctx, stop := app.NotifyContext(parent)
	defer stop()

	return application.Run(ctx)
}
