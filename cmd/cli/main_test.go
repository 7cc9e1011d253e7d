package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapod/storegen/internal/cli"
)

func TestRun_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--help"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "generate")
}

func TestRun_InvalidLogLevelExitsWithUsageCode(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"generate", "--log-level", "loud"})
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRun_UnknownFlagIsAnError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"generate", "--this-is-not-a-valid-flag"})
	require.Error(t, err)
}

func TestRun_GenerateEmptyStore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "apps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "store.hcl"),
		[]byte("enforce_syscall_filter = false\n"), 0o644))

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"generate", "--store", root, "--log-level", "error"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "apps", "registry.json"))
}

func TestRun_InstallRendersAndPersists(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	appDir := filepath.Join(root, "apps", "demo")
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "manifest.yml"),
		[]byte("id: demo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "app.yml.tmpl"),
		[]byte("services:\n  demo:\n    image: demo:1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "store.hcl"),
		[]byte("enforce_syscall_filter = false\n"), 0o644))

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"install", "demo", "--store", root, "--log-level", "error"})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(appDir, "app.yml"))
	state, err := os.ReadFile(filepath.Join(root, "state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(state), "demo")
}
