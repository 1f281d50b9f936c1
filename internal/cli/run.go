package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/spyglass/internal/paths"
	"github.com/mesh-intelligence/spyglass/pkg/behavior"
)

func (a *app) newRunCmd() *cobra.Command {
	var watch bool
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "run <definition>",
		Short: "Run the scenario of a behavior definition",
		Long: "Run builds the stub described by a behavior definition, performs the\n" +
			"scenario steps against it and checks the expectations. It exits with\n" +
			"status 1 when an expectation fails. With --watch the scenario is run\n" +
			"again whenever the file changes, until interrupted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !watch {
				return a.runDefinition(args[0])
			}
			return a.watchDefinition(cmd.Context(), args[0], debounce)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rerun the scenario when the file changes")
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period after a change before rerunning")
	return cmd
}

// watchDefinition runs the definition once and again after every change
// until ctx is done. Failed runs are reported and do not stop watching.
func (a *app) watchDefinition(ctx context.Context, name string, debounce time.Duration) error {
	path, err := paths.ResolveDefinition(name, a.behaviorsDir)
	if err != nil {
		return err
	}
	rerun := func() {
		err := a.runDefinition(path)
		switch {
		case err == nil:
		case errors.Is(err, errScenarioFailed):
			a.logger.Warn("scenario failed", "file", path)
		default:
			fmt.Fprintln(a.stderr, "spyglass:", err)
		}
	}
	rerun()

	w, err := newWatcher(path, debounce, rerun, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("watching", "file", path)
	return w.Run(ctx)
}

// runDefinition runs the scenario of the named definition and prints the
// report. It returns errScenarioFailed when an expectation failed.
func (a *app) runDefinition(name string) error {
	path, def, err := a.loadDefinition(name)
	if err != nil {
		return err
	}
	a.logger.Debug("running scenario", "file", path)
	report, err := def.Run(a.wrapperCfg)
	if err != nil {
		return err
	}
	if a.flags.jsonMode {
		if err := printJSON(a.stdout, report); err != nil {
			return err
		}
	} else {
		printReport(a, path, report)
	}
	if !report.Passed() {
		return errScenarioFailed
	}
	return nil
}

func printReport(a *app, path string, r *behavior.Report) {
	fmt.Fprintln(a.stdout, path)
	fmt.Fprintln(a.stdout, "steps:")
	for _, s := range r.Steps {
		if s.Error != "" {
			fmt.Fprintf(a.stdout, "  %s !! %s\n", s.Step, s.Error)
			continue
		}
		fmt.Fprintf(a.stdout, "  %s -> %s\n", s.Step, s.Return)
	}
	fmt.Fprintln(a.stdout, "operations:")
	for _, m := range r.Members {
		fmt.Fprintf(a.stdout, "  %s (%s)\n", m.Member, m.Kind)
		for _, op := range m.Operations {
			fmt.Fprintln(a.stdout, "    "+op)
		}
	}
	if r.Passed() {
		fmt.Fprintln(a.stdout, "PASS")
		return
	}
	fmt.Fprintln(a.stdout, "failures:")
	for _, f := range r.Failures {
		fmt.Fprintln(a.stdout, "  "+f)
	}
	fmt.Fprintf(a.stdout, "FAIL (%d)\n", len(r.Failures))
}
