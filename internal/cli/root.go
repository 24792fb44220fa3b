package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/texttoaction/tta/internal/app"
	"github.com/texttoaction/tta/internal/config"
	"github.com/texttoaction/tta/internal/logging"
	"github.com/texttoaction/tta/internal/progress"
	"github.com/texttoaction/tta/internal/version"
)

// Options holds global CLI options.
type Options struct {
	ConfigPath string
}

// NewRootCmd constructs the base CLI command tree. Without a subcommand it
// starts the interactive shell.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "tta",
		Short:         "TextToAction: turn plain-English instructions into executed Python",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (default: ./config.yaml or configs/config.yaml)")

	cmd.AddCommand(NewRunCmd(opts))
	cmd.AddCommand(NewCapabilitiesCmd())
	cmd.AddCommand(NewDoctorCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig wraps config loading with shared options.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newRuntime wires the local runtime. The spinner is shown only when out is a terminal.
func newRuntime(ctx context.Context, cfg *config.Config, out io.Writer) (*app.App, error) {
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	var opts []app.Option
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		opts = append(opts, app.WithProgress(progress.NewSpinner(f, "Generating code...")))
	}
	return app.New(ctx, cfg, logger, opts...)
}

func closeRuntime(rt *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		rt.Logger.Warn("close runtime", zap.Error(err))
	}
	_ = rt.Logger.Sync()
}

func runShell(cmd *cobra.Command, opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd.Context(), cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	shell := &Shell{
		Performer:  rt.Agent,
		In:         cmd.InOrStdin(),
		Out:        cmd.OutOrStdout(),
		Err:        cmd.ErrOrStderr(),
		Interrupts: interrupts,
	}
	return shell.Run(cmd.Context())
}
