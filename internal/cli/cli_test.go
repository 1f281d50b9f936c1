package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/spyglass/internal/paths"
	"github.com/mesh-intelligence/spyglass/pkg/behavior"
	"github.com/mesh-intelligence/spyglass/pkg/spyglass"
	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

const failingDefinition = `
interfaces:
  - name: clock
    members:
      - {name: now, kind: function}
behaviors:
  - member: clock.now
    return: 42
scenario:
  steps:
    - call: clock.now
  expect:
    - member: clock.now
      count: 2
`

// runCLI executes the root command with a fresh config directory.
func runCLI(t *testing.T, configDir string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(paths.EnvBehaviorsDir, "")
	t.Setenv("SPYGLASS_LOG_LEVEL", "")
	t.Cleanup(func() { wrapper.SetDefaultConfig(wrapper.NewConfig()) })

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config-dir", configDir}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestVersion(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runCLI(t, dir, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "spyglass v"+spyglass.Version+"\nmodule: "), out)

	out, _, err = runCLI(t, dir, "--json", "version")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, spyglass.Version, got["version"])
}

func TestInitThenRunExample(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runCLI(t, dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Spyglass initialized")
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, "behaviors", "example.yaml"))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "allow_rewrap: true")
	assert.Contains(t, string(data), "log_level: warn")

	// a second init keeps existing files
	writeFile(t, filepath.Join(dir, "config.yaml"), "log_level: error\n")
	_, _, err = runCLI(t, dir, "init")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "log_level: error\n", string(data))

	out, _, err = runCLI(t, dir, "run", "example")
	require.NoError(t, err, out)
	assert.Contains(t, out, "call clock.now() -> 1700000000")
	assert.Contains(t, out, "PASS")
}

func TestConfigAppliesWrapperDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "allow_rewrap: false\ncall_underlying: false\n")
	_, _, err := runCLI(t, dir, "types")
	require.NoError(t, err)

	cfg := wrapper.DefaultConfig()
	assert.False(t, cfg.AllowRewrap)
	assert.False(t, cfg.CallUnderlying)
	assert.True(t, cfg.ExpectThrowsOnTrigger)
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runCLI(t, dir, "--log-level", "loud", "types")
	assert.ErrorContains(t, err, `log level "loud"`)

	writeFile(t, filepath.Join(dir, "config.yaml"), "allow_rewrap: [\n")
	_, _, err = runCLI(t, dir, "types")
	assert.ErrorContains(t, err, "read config")
}

func TestTypes(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runCLI(t, dir, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "number")
	assert.Contains(t, out, "object > date")

	out, _, err = runCLI(t, dir, "--json", "types")
	require.NoError(t, err)
	var infos []typeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.NotEmpty(t, infos)
	assert.Equal(t, "number", infos[0].Name)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	fixture, err := filepath.Abs("../../pkg/behavior/testdata/database.yaml")
	require.NoError(t, err)

	out, _, err := runCLI(t, dir, "check", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, fixture+": ok")
	assert.Contains(t, out, "db.query (function, 2 triggers)")
	assert.Contains(t, out, "db.status (property, 1 triggers)")
	assert.Contains(t, out, "select-one")
	assert.Contains(t, out, "scenario: 5 steps")

	out, _, err = runCLI(t, dir, "--json", "check", fixture)
	require.NoError(t, err)
	var res checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Members, 3)
	assert.Len(t, res.Behaviors, 4)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "interfaces: []\n")
	_, _, err = runCLI(t, dir, "check", bad)
	assert.ErrorIs(t, err, behavior.ErrInvalidDefinition)
	assert.Equal(t, exitUserError, exitCode(err))

	_, _, err = runCLI(t, dir, "check", "missing")
	assert.ErrorIs(t, err, paths.ErrDefinitionNotFound)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "behaviors", "clock.yml"), failingDefinition)

	out, _, err := runCLI(t, dir, "run", "clock")
	assert.ErrorIs(t, err, errScenarioFailed)
	assert.Equal(t, exitUserError, exitCode(err))
	assert.Contains(t, out, "call clock.now() -> 42")
	assert.Contains(t, out, "ExpectCount: expected exactly 2 operations; got 1")
	assert.Contains(t, out, "FAIL (1)")

	out, _, err = runCLI(t, dir, "--json", "run", "clock")
	assert.ErrorIs(t, err, errScenarioFailed)
	var report behavior.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Failures, 1)
	require.Len(t, report.Members, 1)
	assert.Equal(t, "clock.now", report.Members[0].Member)
}

func TestBehaviorsDirFromConfig(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "clock.yaml"), failingDefinition)
	writeFile(t, filepath.Join(dir, "config.yaml"), "behaviors_dir: "+other+"\n")

	_, _, err := runCLI(t, dir, "check", "clock")
	assert.NoError(t, err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitSuccess},
		{"scenario failed", errScenarioFailed, exitUserError},
		{"invalid definition", behavior.ErrInvalidDefinition, exitUserError},
		{"no scenario", behavior.ErrNoScenario, exitUserError},
		{"not found", paths.ErrDefinitionNotFound, exitUserError},
		{"other", errors.New("disk on fire"), exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clock.yaml")
	writeFile(t, path, failingDefinition)

	var runs atomic.Int32
	w, err := newWatcher(path, 50*time.Millisecond, func() { runs.Add(1) }, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// unrelated files are ignored
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
	for range 3 {
		writeFile(t, path, failingDefinition)
	}
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunWatchStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clock.yaml")
	writeFile(t, path, failingDefinition)
	t.Setenv(paths.EnvBehaviorsDir, "")
	t.Cleanup(func() { wrapper.SetDefaultConfig(wrapper.NewConfig()) })

	ctx, cancel := context.WithCancel(context.Background())
	var stdout bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config-dir", dir, "run", "--watch", "--debounce", "10ms", path})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run --watch did not stop")
	}
	assert.Contains(t, stdout.String(), "FAIL (1)")
}
