package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/texttoaction/tta/internal/sandbox"
)

// NewCapabilitiesCmd prints the names a generated script may use.
func NewCapabilitiesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show the sandbox capability set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCapabilities(cmd.OutOrStdout(), sandbox.Standard().Describe(), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	return cmd
}

func writeCapabilities(out io.Writer, d sandbox.Descriptor, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case "", "text":
		fmt.Fprintf(out, "Builtins:      %s\n", strings.Join(d.Builtins, ", "))
		fmt.Fprintf(out, "Modules:       %s\n", strings.Join(d.Modules, ", "))
		fmt.Fprintf(out, "Host modules:  %s\n", strings.Join(d.HostModules, ", "))
		fmt.Fprintf(out, "Imports:       %s (via %s)\n", strings.Join(d.Imports, ", "), d.ImportHook)
		return nil
	default:
		return fmt.Errorf("unknown format %q: want text, json or yaml", format)
	}
}
