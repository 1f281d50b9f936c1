package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "SPYGLASS"

	cfgKeyAllowRewrap           = "allow_rewrap"
	cfgKeyExpectThrows          = "expect_throws"
	cfgKeyExpectThrowsOnTrigger = "expect_throws_on_trigger"
	cfgKeyCallUnderlying        = "call_underlying"
	cfgKeyLogLevel              = "log_level"
	cfgKeyBehaviorsDir          = "behaviors_dir"
)

// loadConfig reads config.yaml from configDir using Viper. Values come
// from, in increasing precedence: built-in defaults, config.yaml,
// SPYGLASS_* environment variables, and the --log-level flag when given.
// A missing config.yaml is not an error.
func loadConfig(configDir string, logLevelFlag *pflag.Flag) (*viper.Viper, error) {
	defaults := wrapper.NewConfig()

	v := viper.New()
	v.SetDefault(cfgKeyAllowRewrap, defaults.AllowRewrap)
	v.SetDefault(cfgKeyExpectThrows, defaults.ExpectThrows)
	v.SetDefault(cfgKeyExpectThrowsOnTrigger, defaults.ExpectThrowsOnTrigger)
	v.SetDefault(cfgKeyCallUnderlying, defaults.CallUnderlying)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyBehaviorsDir, "")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if logLevelFlag != nil {
		if err := v.BindPFlag(cfgKeyLogLevel, logLevelFlag); err != nil {
			return nil, fmt.Errorf("bind log level flag: %w", err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// wrapperConfig builds the wrapper defaults described by v.
func wrapperConfig(v *viper.Viper, logger *slog.Logger) wrapper.Config {
	return wrapper.Config{
		AllowRewrap:           v.GetBool(cfgKeyAllowRewrap),
		ExpectThrows:          v.GetBool(cfgKeyExpectThrows),
		ExpectThrowsOnTrigger: v.GetBool(cfgKeyExpectThrowsOnTrigger),
		CallUnderlying:        v.GetBool(cfgKeyCallUnderlying),
		Logger:                logger,
	}
}

// newLogger returns a text logger writing to w at the named level.
func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
