package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/spyglass/pkg/spyglass"
)

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the spyglass version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.flags.jsonMode {
				return printJSON(a.stdout, map[string]string{
					"version": spyglass.Version,
					"module":  modulePath(),
				})
			}
			fmt.Fprintf(a.stdout, "spyglass v%s\nmodule: %s\n", spyglass.Version, modulePath())
			return nil
		},
	}
}

func modulePath() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path != "" {
		return info.Main.Path
	}
	return "github.com/mesh-intelligence/spyglass"
}
