package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type checkResult struct {
	File      string   `json:"file"`
	Members   []string `json:"members"`
	Behaviors []string `json:"behaviors"`
	Steps     int      `json:"steps"`
	Expect    int      `json:"expect"`
}

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <definition>",
		Short: "Validate a behavior definition and build its stub",
		Long: "Check loads a behavior definition, validates it and installs every\n" +
			"behavior on a stub without running the scenario. The definition is\n" +
			"a path or a name looked up in the behaviors directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, def, err := a.loadDefinition(args[0])
			if err != nil {
				return err
			}
			stub, err := def.Stub(a.wrapperCfg)
			if err != nil {
				return err
			}
			res := checkResult{File: path, Members: []string{}, Behaviors: []string{}}
			for _, ref := range def.MemberRefs() {
				w, err := stub.Wrapper(ref)
				if err != nil {
					return err
				}
				res.Members = append(res.Members, fmt.Sprintf("%s (%s, %d triggers)", ref, w.Kind(), len(w.Triggers())))
			}
			if err := stub.Restore(); err != nil {
				return err
			}
			for _, b := range def.Behaviors {
				res.Behaviors = append(res.Behaviors, b.Label())
			}
			if def.Scenario != nil {
				res.Steps = len(def.Scenario.Steps)
				res.Expect = len(def.Scenario.Expect)
			}

			if a.flags.jsonMode {
				return printJSON(a.stdout, res)
			}
			fmt.Fprintf(a.stdout, "%s: ok\n", res.File)
			fmt.Fprintln(a.stdout, "members:")
			for _, m := range res.Members {
				fmt.Fprintln(a.stdout, "  "+m)
			}
			if len(res.Behaviors) > 0 {
				fmt.Fprintln(a.stdout, "behaviors:")
				for _, b := range res.Behaviors {
					fmt.Fprintln(a.stdout, "  "+b)
				}
			}
			if def.Scenario != nil {
				fmt.Fprintf(a.stdout, "scenario: %d steps, %d expectations\n", res.Steps, res.Expect)
			}
			return nil
		},
	}
}
