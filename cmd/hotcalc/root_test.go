package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hotcalc/internal/config"
)

func newTestRoot(t *testing.T, stdin string) (*bytes.Buffer, func(args ...string) error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.PathEnv, filepath.Join(dir, "hotcalc.toml"))
	t.Setenv(config.EnvPluginsDir, filepath.Join(dir, "plugins"))
	t.Setenv(config.EnvLogLevel, "panic")

	var out bytes.Buffer
	return &out, func(args ...string) error {
		root := NewRootCommand("1.0.0", "abc123", "today")
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)
		return root.ExecuteContext(context.Background())
	}
}

func TestRootRunsREPL(t *testing.T) {
	out, execute := newTestRoot(t, "multiply [6,7]\nquit\n")

	require.NoError(t, execute())
	assert.Contains(t, out.String(), "Welcome to the calculator!")
	assert.Contains(t, out.String(), "42\n")
}

func TestRootRejectsArgs(t *testing.T) {
	_, execute := newTestRoot(t, "")
	assert.Error(t, execute("extra"))
}

func TestRootVersion(t *testing.T) {
	out, execute := newTestRoot(t, "")
	require.NoError(t, execute("--version"))
	assert.Contains(t, out.String(), "1.0.0 (commit: abc123, built: today)")
}

func TestRootConfigError(t *testing.T) {
	_, execute := newTestRoot(t, "")
	t.Setenv(config.EnvLogFormat, "xml")
	assert.ErrorIs(t, execute(), config.ErrValidationFailed)
}
