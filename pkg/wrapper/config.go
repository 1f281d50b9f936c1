package wrapper

import (
	"log/slog"
	"sync"
)

// Config holds the behavior flags of a Wrapper.
type Config struct {
	// AllowRewrap makes wrapping an already wrapped target return the
	// existing Wrapper. When false, rewrapping fails with ErrRewrap.
	AllowRewrap bool

	// ExpectThrows makes failed Operation and HistoryList expectations
	// panic with *ExpectError instead of only being logged.
	ExpectThrows bool

	// ExpectThrowsOnTrigger makes a failed expectation action abort the
	// intercepted call, which then returns the *ExpectError.
	ExpectThrowsOnTrigger bool

	// CallUnderlying controls whether the wrapped implementation runs.
	// Triggers run either way.
	CallUnderlying bool

	// Logger receives debug records for wrap, unwrap and dispatch.
	Logger *slog.Logger
}

// NewConfig returns the built-in defaults.
func NewConfig() Config {
	return Config{
		AllowRewrap:           true,
		ExpectThrows:          false,
		ExpectThrowsOnTrigger: true,
		CallUnderlying:        true,
		Logger:                slog.New(slog.DiscardHandler),
	}
}

var (
	defaultMu     sync.RWMutex
	defaultConfig = NewConfig()
)

// DefaultConfig returns the configuration new Wrappers start with.
func DefaultConfig() Config {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultConfig
}

// SetDefaultConfig replaces the configuration new Wrappers start with.
// A nil Logger is replaced by a discarding logger.
func SetDefaultConfig(cfg Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	defaultMu.Lock()
	defaultConfig = cfg
	defaultMu.Unlock()
}

// Config returns the wrapper's current configuration.
func (w *Wrapper) Config() Config { return w.cfg }

// ConfigReset restores the configuration to DefaultConfig.
func (w *Wrapper) ConfigReset() error {
	if err := w.checkActive(); err != nil {
		return err
	}
	w.cfg = DefaultConfig()
	return nil
}

// Configure replaces the whole configuration. A nil Logger discards.
func (w *Wrapper) Configure(cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return w.configure(func(c *Config) { *c = cfg })
}

// ConfigAllowRewrap sets Config.AllowRewrap.
func (w *Wrapper) ConfigAllowRewrap(allow bool) error {
	return w.configure(func(c *Config) { c.AllowRewrap = allow })
}

// ConfigExpectThrows sets Config.ExpectThrows.
func (w *Wrapper) ConfigExpectThrows(throws bool) error {
	return w.configure(func(c *Config) { c.ExpectThrows = throws })
}

// ConfigExpectThrowsOnTrigger sets Config.ExpectThrowsOnTrigger.
func (w *Wrapper) ConfigExpectThrowsOnTrigger(throws bool) error {
	return w.configure(func(c *Config) { c.ExpectThrowsOnTrigger = throws })
}

// ConfigCallUnderlying sets Config.CallUnderlying.
func (w *Wrapper) ConfigCallUnderlying(call bool) error {
	return w.configure(func(c *Config) { c.CallUnderlying = call })
}

// ConfigLogger sets Config.Logger. A nil logger discards.
func (w *Wrapper) ConfigLogger(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return w.configure(func(c *Config) { c.Logger = logger })
}

func (w *Wrapper) configure(fn func(*Config)) error {
	if err := w.checkActive(); err != nil {
		return err
	}
	fn(&w.cfg)
	return nil
}
