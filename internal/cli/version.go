package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/batchengine/internal/config"
	"github.com/rshade/batchengine/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLenientConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, version.String())
			fmt.Fprintf(w, "config schema: %s\n", version.SchemaVersion)
			if cfg := config.GetGlobalConfig(); cfg != nil && cfg.SchemaVersion != version.SchemaVersion {
				fmt.Fprintf(w, "loaded config schema: %s\n", cfg.SchemaVersion)
			}
			return nil
		},
	}
}
