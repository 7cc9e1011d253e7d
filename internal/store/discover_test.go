package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDiscover_FindsAppsWithManifests(t *testing.T) {
	appsDir := t.TempDir()
	writeFiles(t, filepath.Join(appsDir, "beta"), map[string]string{
		"manifest.yml": "id: beta\n",
	})
	writeFiles(t, filepath.Join(appsDir, "alpha"), map[string]string{
		"manifest.yml.tmpl": "id: alpha\n",
	})
	// Not an app: no manifest.
	writeFiles(t, filepath.Join(appsDir, "junk"), map[string]string{
		"readme.txt": "nothing here\n",
	})
	// Plain files at the top level are ignored too.
	writeFiles(t, appsDir, map[string]string{"registry.json": "{}"})

	apps, err := Discover(context.Background(), appsDir)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "alpha", apps[0].ID)
	assert.Equal(t, "beta", apps[1].ID)
}

func TestDiscover_TemplateTakesPriorityOverStaticFile(t *testing.T) {
	appsDir := t.TempDir()
	writeFiles(t, filepath.Join(appsDir, "app"), map[string]string{
		"manifest.yml":      "id: stale\n",
		"manifest.yml.tmpl": "id: app\n",
	})

	apps, err := Discover(context.Background(), appsDir)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	m := apps[0].Manifest
	assert.Equal(t, filepath.Join(appsDir, "app", "manifest.yml.tmpl"), m.Path)
	assert.Equal(t, filepath.Join(appsDir, "app", "manifest.yml"), m.OutPath)
	assert.Equal(t, "id: app\n", m.Text)
}

func TestDiscover_StaticFilesRenderInPlace(t *testing.T) {
	appsDir := t.TempDir()
	writeFiles(t, filepath.Join(appsDir, "app"), map[string]string{
		"manifest.yml": "id: app\n",
		"app.yml":      "services: {}\n",
	})

	apps, err := Discover(context.Background(), appsDir)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	def := apps[0].Definition
	require.NotNil(t, def)
	// Path == OutPath signals there is nothing to write back.
	assert.Equal(t, def.Path, def.OutPath)
}

func TestDiscover_CollectsConfigTemplates(t *testing.T) {
	appsDir := t.TempDir()
	writeFiles(t, filepath.Join(appsDir, "app"), map[string]string{
		"manifest.yml":         "id: app\n",
		"config/b.toml.tmpl":   "b\n",
		"config/a.ini.tmpl":    "a\n",
		"config/static.txt":    "not a template\n",
		"config/nested/c.tmpl": "ignored, config is flat\n",
	})

	apps, err := Discover(context.Background(), appsDir)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	tpls := apps[0].ConfigTemplates
	require.Len(t, tpls, 2)
	assert.Equal(t, filepath.Join(appsDir, "app", "config", "a.ini.tmpl"), tpls[0].Path)
	assert.Equal(t, filepath.Join(appsDir, "app", "config", "a.ini"), tpls[0].OutPath)
	assert.Equal(t, filepath.Join(appsDir, "app", "config", "b.toml.tmpl"), tpls[1].Path)
}

func TestDiscover_ConcatenatesHelpersInNameOrder(t *testing.T) {
	appsDir := t.TempDir()
	writeFiles(t, filepath.Join(appsDir, "app"), map[string]string{
		"manifest.yml":    "id: app\n",
		"_helpers/b.js":   "function second() { return 2; }",
		"_helpers/a.js":   "function first() { return 1; }",
		"_helpers/no.txt": "not a script",
	})

	apps, err := Discover(context.Background(), appsDir)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	helpers := apps[0].Helpers
	first := strings.Index(helpers, "function first")
	second := strings.Index(helpers, "function second")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
	assert.NotContains(t, helpers, "not a script")
}

func TestDiscover_MissingAppsDirIsAnError(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
