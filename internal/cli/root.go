// Package cli implements the spyglass command-line interface: loading
// behavior definitions, building stubs from them and running their
// scenarios.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/spyglass/internal/paths"
	"github.com/mesh-intelligence/spyglass/pkg/behavior"
	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errScenarioFailed is returned by run when an expectation failed.
var errScenarioFailed = errors.New("scenario failed")

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by the commands of one root command.
type app struct {
	flags rootFlags

	configDir    string
	behaviorsDir string
	wrapperCfg   wrapper.Config
	logger       *slog.Logger

	stdout io.Writer
	stderr io.Writer
}

// NewRootCmd creates the top-level "spyglass" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{wrapperCfg: wrapper.NewConfig(), logger: slog.New(slog.DiscardHandler)}
	root := &cobra.Command{
		Use:   "spyglass",
		Short: "Stub interfaces from behavior files and check how they are used",
		Long: "Spyglass builds instrumented stubs from YAML behavior definitions,\n" +
			"drives them through scripted scenarios and reports every recorded\n" +
			"call, read and write together with failed expectations.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetContext(context.Background())

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(a.newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newTypesCmd())
	root.AddCommand(a.newCheckCmd())
	root.AddCommand(a.newRunCmd())
	return root
}

// setup resolves directories, loads the configuration and installs the
// logger and wrapper defaults it describes.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = configDir

	v, err := loadConfig(configDir, cmd.Root().PersistentFlags().Lookup("log-level"))
	if err != nil {
		return err
	}
	logger, err := newLogger(v.GetString(cfgKeyLogLevel), a.stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	a.wrapperCfg = wrapperConfig(v, logger)
	wrapper.SetDefaultConfig(a.wrapperCfg)

	a.behaviorsDir, err = paths.ResolveBehaviorsDir(configDir, v.GetString(cfgKeyBehaviorsDir))
	if err != nil {
		return fmt.Errorf("resolve behaviors dir: %w", err)
	}
	logger.Debug("configuration loaded",
		"config_dir", configDir, "config_file", v.ConfigFileUsed(), "behaviors_dir", a.behaviorsDir)
	return nil
}

// loadDefinition resolves name against the behaviors directory and loads it.
func (a *app) loadDefinition(name string) (string, *behavior.Definition, error) {
	path, err := paths.ResolveDefinition(name, a.behaviorsDir)
	if err != nil {
		return "", nil, err
	}
	def, err := behavior.LoadFile(path)
	if err != nil {
		return path, nil, err
	}
	return path, def, nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, errScenarioFailed) {
		fmt.Fprintln(os.Stderr, "spyglass:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errScenarioFailed),
		errors.Is(err, behavior.ErrInvalidDefinition),
		errors.Is(err, behavior.ErrNoScenario),
		errors.Is(err, paths.ErrDefinitionNotFound):
		return exitUserError
	}
	return exitSysError
}
