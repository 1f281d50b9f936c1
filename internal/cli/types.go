package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/spyglass/pkg/match"
)

type typeInfo struct {
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	Chain []string `json:"chain"`
}

func (a *app) newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the value types known to the matcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := match.Default()
			var infos []typeInfo
			for _, name := range reg.TypeNames() {
				node, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				infos = append(infos, typeInfo{Name: node.Name, Kind: node.Kind.String(), Chain: node.Chain()})
			}
			if a.flags.jsonMode {
				return printJSON(a.stdout, infos)
			}
			for _, ti := range infos {
				fmt.Fprintf(a.stdout, "%-12s %s\n", ti.Name, strings.Join(ti.Chain, " > "))
			}
			return nil
		},
	}
}
