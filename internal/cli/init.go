package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

// fileConfig is the layout of config.yaml.
type fileConfig struct {
	AllowRewrap           bool   `yaml:"allow_rewrap"`
	ExpectThrows          bool   `yaml:"expect_throws"`
	ExpectThrowsOnTrigger bool   `yaml:"expect_throws_on_trigger"`
	CallUnderlying        bool   `yaml:"call_underlying"`
	LogLevel              string `yaml:"log_level"`
}

const configHeader = "# spyglass configuration\n" +
	"# Wrapper defaults applied to every stub; behaviors_dir may name the\n" +
	"# directory searched for behavior files given without a path.\n"

const exampleName = "example.yaml"

const exampleDefinition = `# Example behavior definition. Run it with: spyglass run example
interfaces:
  - name: clock
    members:
      - {name: now, kind: function}
      - {name: zone, kind: property, value: UTC}

behaviors:
  - name: fixed-time
    member: clock.now
    return: 1700000000
  - name: zone-is-sticky
    member: clock.zone
    when: {setVal: local}
    setVal: UTC

scenario:
  steps:
    - call: clock.now
    - set: clock.zone
      value: local
    - get: clock.zone
  expect:
    - member: clock.now
      count: 1
    - member: clock.now
      number: 0
      return: 1700000000
    - member: clock.zone
      number: 1
      return: UTC
`

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and behaviors directories",
		Long: "Init creates config.yaml with the built-in wrapper defaults and a\n" +
			"behaviors directory holding an example definition. Existing files\n" +
			"are left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(a.behaviorsDir, 0o755); err != nil {
				return fmt.Errorf("create behaviors dir: %w", err)
			}
			configPath := filepath.Join(a.configDir, configFileExt)
			if err := writeDefaultConfig(configPath); err != nil {
				return err
			}
			examplePath := filepath.Join(a.behaviorsDir, exampleName)
			if err := writeIfMissing(examplePath, []byte(exampleDefinition)); err != nil {
				return err
			}
			a.logger.Info("initialized", "config", configPath, "behaviors", a.behaviorsDir)

			if a.flags.jsonMode {
				return printJSON(a.stdout, map[string]string{
					"config":    configPath,
					"behaviors": a.behaviorsDir,
				})
			}
			fmt.Fprintln(a.stdout, "Spyglass initialized")
			fmt.Fprintln(a.stdout, "  config:   ", configPath)
			fmt.Fprintln(a.stdout, "  behaviors:", a.behaviorsDir)
			return nil
		},
	}
}

// writeDefaultConfig writes the built-in defaults to path unless it exists.
func writeDefaultConfig(path string) error {
	defaults := wrapper.NewConfig()
	out, err := yaml.Marshal(fileConfig{
		AllowRewrap:           defaults.AllowRewrap,
		ExpectThrows:          defaults.ExpectThrows,
		ExpectThrowsOnTrigger: defaults.ExpectThrowsOnTrigger,
		CallUnderlying:        defaults.CallUnderlying,
		LogLevel:              "warn",
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return writeIfMissing(path, append([]byte(configHeader), out...))
}

func writeIfMissing(path string, data []byte) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
