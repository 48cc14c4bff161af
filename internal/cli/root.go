// Package cli holds the cobra commands of the shakethefrog binary.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shakethefrog/internal/app"
	logx "shakethefrog/pkg/logx"
)

const defaultConfig = "config.yaml"

func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "shakethefrog",
		Short:        "Shake the frog: a tiny toy with hearts, phrases and premium skins",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfig, "path to config (yaml or json)")

	// Without an explicit --config the default file may be absent.
	optional := func(cmd *cobra.Command) bool { return !cmd.Flags().Changed("config") }

	root.AddCommand(
		serveCmd(&cfgPath),
		playCmd(&cfgPath, optional),
		simulateCmd(&cfgPath, optional),
		configCmd(&cfgPath, optional),
	)
	return root
}

func serveCmd(cfgPath *string) *cobra.Command {
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook processing and background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *cfgPath, stopTimeout)
		},
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "graceful shutdown budget")
	return cmd
}

func serve(ctx context.Context, cfgPath string, stopTimeout time.Duration) error {
	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := a.Start(runCtx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopAppStop
	select {
	case sig := <-sigs:
		reason = app.StopSIGTERM
		if sig == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	case <-ctx.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	return a.Err()
}

func playCmd(cfgPath *string, optional func(*cobra.Command) bool) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Shake the frog in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return app.Play(ctx, *cfgPath, optional(cmd))
		},
	}
}

func simulateCmd(cfgPath *string, optional func(*cobra.Command) bool) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "simulate <script>",
		Short: "Replay a scripted input sequence on a virtual clock and print the timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Simulate(*cfgPath, optional(cmd), args[0], format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format (text|json)")
	return cmd
}

func configCmd(cfgPath *string, optional func(*cobra.Command) bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			local, err := app.LoadLocal(*cfgPath, optional(cmd), logx.Nop())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config OK (default skin %s, default language %s)\n",
				local.Skins.Default().ID, local.Catalogs.Default())
			return nil
		},
	})
	return cmd
}
