package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/texttoaction/tta/internal/config"
	"github.com/texttoaction/tta/internal/llm"
	"github.com/texttoaction/tta/internal/llm/configbuilder"
	"github.com/texttoaction/tta/internal/sandbox"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	var ping, sandboxCheck bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			gen, reg, err := configbuilder.BuildGenerator(cfg)
			if err != nil {
				return fmt.Errorf("build generator: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %s, models: %d\n", strings.Join(providerNames(cfg), ", "), len(cfg.Models))
			fmt.Fprintf(out, "Generation route: %s, model: %s\n", routeName(cfg, reg), gen.Model())
			fmt.Fprintf(out, "Retry budget: %d attempts, feedback: %v\n", cfg.Retry.Attempts(), cfg.Retry.FeedbackErrors)
			fmt.Fprintf(out, "Sandbox backend: %s, metrics: %v\n", backendName(cfg), cfg.Server.MetricsEnabled)

			var problems []error
			if backendName(cfg) == "process" {
				if path, err := exec.LookPath(cfg.Sandbox.Interpreter); err != nil {
					fmt.Fprintf(out, "Interpreter %s: NOT FOUND\n", cfg.Sandbox.Interpreter)
					problems = append(problems, fmt.Errorf("interpreter %q: %w", cfg.Sandbox.Interpreter, err))
				} else {
					fmt.Fprintf(out, "Interpreter %s: %s\n", cfg.Sandbox.Interpreter, path)
				}
			} else {
				fmt.Fprintf(out, "Container image: %s (network: %v)\n", cfg.Sandbox.Docker.Image, cfg.Sandbox.Docker.Network)
			}

			if ping {
				if err := pingProvider(cmd.Context(), reg, cfg.Generation.Route); err != nil {
					fmt.Fprintf(out, "Generation service: UNREACHABLE (%v)\n", err)
					problems = append(problems, err)
				} else {
					fmt.Fprintln(out, "Generation service: reachable")
				}
			}

			if sandboxCheck {
				if err := checkSandbox(cmd.Context(), cfg); err != nil {
					fmt.Fprintf(out, "Sandbox check: FAILED (%v)\n", err)
					problems = append(problems, err)
				} else {
					fmt.Fprintln(out, "Sandbox check: OK")
				}
			}

			if len(problems) > 0 {
				return fmt.Errorf("doctor found problems: %w", errors.Join(problems...))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "Also check that the generation service is reachable")
	cmd.Flags().BoolVar(&sandboxCheck, "sandbox", false, "Also run an empty script to check every capability module is installed")
	return cmd
}

func pingProvider(ctx context.Context, reg *llm.Registry, route string) error {
	provider, _, err := reg.Resolve(route)
	if err != nil {
		return err
	}
	pinger, ok := provider.(llm.Pinger)
	if !ok {
		return fmt.Errorf("provider %s cannot be pinged", provider.Name())
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return pinger.Ping(ctx)
}

// checkSandbox runs a no-op script through the configured backend and fails
// when the interpreter lacks a capability module.
func checkSandbox(ctx context.Context, cfg *config.Config) error {
	exe, err := sandbox.New(cfg.Sandbox, sandbox.Standard(), nil)
	if err != nil {
		return err
	}
	if c, ok := exe.(io.Closer); ok {
		defer c.Close()
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	res, err := exe.Execute(ctx, "pass", sandbox.Streams{})
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	if len(res.Unavailable) > 0 {
		return fmt.Errorf("capability modules not installed: %s", strings.Join(res.Unavailable, ", "))
	}
	if !res.OK() {
		return fmt.Errorf("sandbox: %w", res.Err())
	}
	return nil
}

func providerNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Providers))
	for name, p := range cfg.Providers {
		names = append(names, fmt.Sprintf("%s(%s)", name, p.Type))
	}
	sort.Strings(names)
	return names
}

func routeName(cfg *config.Config, reg *llm.Registry) string {
	if cfg.Generation.Route != "" {
		return cfg.Generation.Route
	}
	return reg.DefaultRoute()
}

func backendName(cfg *config.Config) string {
	b := strings.ToLower(strings.TrimSpace(cfg.Sandbox.Backend))
	if b == "" {
		return "process"
	}
	return b
}
