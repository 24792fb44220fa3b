package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/texttoaction/tta/internal/version"
)

// NewVersionCmd prints the compiled version details.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tta version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TextToAction %s\n", version.Full())
		},
	}
}
