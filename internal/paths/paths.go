// Package paths resolves the configuration and behavior directory
// locations and the behavior files named on the command line.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the platform configuration subdirectory.
const AppName = "spyglass"

// BehaviorsDirName is the behaviors subdirectory of the config directory.
const BehaviorsDirName = "behaviors"

// Environment variable names for directory overrides.
const (
	EnvConfigDir    = "SPYGLASS_CONFIG_DIR"
	EnvBehaviorsDir = "SPYGLASS_BEHAVIORS_DIR"
)

// ErrDefinitionNotFound is returned when a behavior file cannot be found.
var ErrDefinitionNotFound = errors.New("behavior file not found")

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/spyglass (fallback ~/.config/spyglass)
// macOS:   ~/Library/Application Support/spyglass
// Windows: %APPDATA%/spyglass
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > SPYGLASS_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveBehaviorsDir returns the directory searched for behavior files
// named without a path: configValue > SPYGLASS_BEHAVIORS_DIR env >
// <configDir>/behaviors.
func ResolveBehaviorsDir(configDir, configValue string) (string, error) {
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvBehaviorsDir); env != "" {
		return filepath.Abs(env)
	}
	return filepath.Join(configDir, BehaviorsDirName), nil
}

// ResolveDefinition locates a behavior file. name is used as given when it
// exists; otherwise it is looked up in behaviorsDir, with and without a
// .yaml or .yml extension.
func ResolveDefinition(name, behaviorsDir string) (string, error) {
	if isFile(name) {
		return filepath.Abs(name)
	}
	if behaviorsDir != "" && !filepath.IsAbs(name) {
		for _, candidate := range []string{name, name + ".yaml", name + ".yml"} {
			p := filepath.Join(behaviorsDir, candidate)
			if isFile(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
