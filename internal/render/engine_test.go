package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapod/storegen/internal/script"
)

// fakeInvoker records invocations and returns a canned value.
type fakeInvoker struct {
	calls []script.Invocation
	value any
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, inv script.Invocation) (*script.Result, error) {
	f.calls = append(f.calls, inv)
	if f.err != nil {
		return nil, f.err
	}
	return &script.Result{Value: f.value}, nil
}

func TestRender_IsDeterministic(t *testing.T) {
	e := NewEngine()
	ctx := map[string]any{"services": []string{"nginx", "postgres"}}
	text := "services:\n{{- range .services }}\n  - {{ . }}\n{{- end }}\n"

	first, err := e.Render("manifest", text, ctx)
	require.NoError(t, err)
	second, err := e.Render("manifest", text, ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "- nginx")
	assert.Contains(t, first, "- postgres")
}

func TestRender_ServicesKeepDeclarationOrder(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("m", `{{ range .services }}{{ . }} {{ end }}`, map[string]any{
		"services": []string{"nginx", "postgres"},
	})
	require.NoError(t, err)
	assert.Equal(t, "nginx postgres ", out)
}

func TestRender_UnknownVariableIsAnError(t *testing.T) {
	e := NewEngine()
	_, err := e.Render("m", `{{ .doesNotExist }}`, map[string]any{"known": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesNotExist")
}

func TestRender_MalformedTemplateIsAParseError(t *testing.T) {
	e := NewEngine()
	_, err := e.Render("m", `{{ range }}`, map[string]any{})
	require.Error(t, err)
}

func TestRender_SprigFunctionsAreAvailable(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("m", `{{ .name | upper | quote }}`, map[string]any{"name": "nextcloud"})
	require.NoError(t, err)
	assert.Equal(t, `"NEXTCLOUD"`, out)
}

func TestRender_EnvironmentAccessIsStripped(t *testing.T) {
	t.Setenv("STOREGEN_SECRET", "leaked")
	e := NewEngine()
	_, err := e.Render("m", `{{ env "STOREGEN_SECRET" }}`, map[string]any{})
	require.Error(t, err, "env must not be callable from templates")
}

func TestRender_DNSLookupIsStripped(t *testing.T) {
	e := NewEngine()
	_, err := e.Render("m", `{{ getHostByName "example.com" }}`, map[string]any{})
	require.Error(t, err, "getHostByName must not be callable from templates")
}

func TestBindFuncs_DeriveEntropyIsStablePerIdentifier(t *testing.T) {
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{AppID: "nextcloud", Seed: "seed", Sandbox: &fakeInvoker{}})

	first, err := e.Render("m", `{{ deriveEntropy "db-password" }}`, map[string]any{})
	require.NoError(t, err)
	second, err := e.Render("m", `{{ deriveEntropy "db-password" }}`, map[string]any{})
	require.NoError(t, err)
	other, err := e.Render("m", `{{ deriveEntropy "admin-password" }}`, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 64)
}

func TestBindFuncs_DeriveEntropyDiffersPerApp(t *testing.T) {
	render := func(appID string) string {
		e := NewEngine()
		BindFuncs(context.Background(), e, Funcs{AppID: appID, Seed: "seed", Sandbox: &fakeInvoker{}})
		out, err := e.Render("m", `{{ deriveEntropy "db-password" }}`, map[string]any{})
		require.NoError(t, err)
		return out
	}
	assert.NotEqual(t, render("nextcloud"), render("gitea"))
}

func TestBindFuncs_RandomHexRoutesThroughSandbox(t *testing.T) {
	invoker := &fakeInvoker{value: "cafe"}
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{AppID: "demo", Sandbox: invoker})

	out, err := e.Render("m", `{{ randomHex 2 }}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "cafe", out)

	require.Len(t, invoker.calls, 1)
	assert.Equal(t, "demo", invoker.calls[0].AppID)
	assert.EqualValues(t, 2, invoker.calls[0].Args["count"])
}

func TestBindFuncs_DebugLogRendersToNothing(t *testing.T) {
	invoker := &fakeInvoker{}
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{AppID: "demo", Sandbox: invoker})

	out, err := e.Render("m", `a{{ debugLog "checkpoint" }}b`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
	require.Len(t, invoker.calls, 1)
	assert.Equal(t, "checkpoint", invoker.calls[0].Args["value"])
}

func TestBindFuncs_HelpersBecomeTemplateFunctions(t *testing.T) {
	invoker := &fakeInvoker{value: int64(12)}
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{
		AppID:   "demo",
		Sandbox: invoker,
		Helpers: `function math(args) { return (args.num1 + 1) * args.num2; }`,
	})

	out, err := e.Render("m", `{{ math "num1" 5 "num2" 2 }}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "12", out)

	require.Len(t, invoker.calls, 1)
	call := invoker.calls[0]
	assert.Equal(t, "math", call.Entrypoint)
	assert.EqualValues(t, 5, call.Args["num1"])
	assert.EqualValues(t, 2, call.Args["num2"])
}

func TestBindFuncs_HelperRejectsOddArguments(t *testing.T) {
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{
		AppID:   "demo",
		Sandbox: &fakeInvoker{},
		Helpers: `function math(args) { return 1; }`,
	})
	_, err := e.Render("m", `{{ math "num1" }}`, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name/value pairs")
}

func TestBindFuncs_ReadFileStubErrorsOutsideStageThree(t *testing.T) {
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{AppID: "demo", Sandbox: &fakeInvoker{}})
	_, err := e.Render("m", `{{ readFile "anything" }}`, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config-file templates")
}

func TestBindFuncs_RequireRegenStubErrorsOutsideStageThree(t *testing.T) {
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{AppID: "demo", Sandbox: &fakeInvoker{}})
	_, err := e.Render("m", `{{ requireRegen 3600 }}`, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config-file templates")
}

func TestRequireRegen_SchedulesAndEnforcesMinimumDelay(t *testing.T) {
	var scheduled []time.Time
	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{
		AppID:   "demo",
		Sandbox: &fakeInvoker{},
		ScheduleRegen: func(at time.Time) error {
			scheduled = append(scheduled, at)
			return nil
		},
	})

	before := time.Now()
	out, err := e.Render("m", `a{{ requireRegen 3600 }}b`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ab", out)

	require.Len(t, scheduled, 1)
	assert.WithinDuration(t, before.Add(time.Hour), scheduled[0], 5*time.Second)

	_, err = e.Render("m", `{{ requireRegen 59 }}`, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 60 seconds")
	assert.Len(t, scheduled, 1)
}

func TestReadFile_AllowListAndFallback(t *testing.T) {
	root := t.TempDir()
	appData := filepath.Join(root, "app-data", "nextcloud")
	require.NoError(t, os.MkdirAll(appData, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(appData, "token"), []byte("s3cret"), 0o600))
	outside := filepath.Join(root, "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("nope"), 0o600))

	e := NewEngine()
	BindFuncs(context.Background(), e, Funcs{
		AppID:     "demo",
		Sandbox:   &fakeInvoker{},
		ReadRoots: []string{appData},
	})

	t.Run("allowed path", func(t *testing.T) {
		out, err := e.Render("m", `{{ readFile (printf "%s/token" .dir) }}`, map[string]any{"dir": appData})
		require.NoError(t, err)
		assert.Equal(t, "s3cret", out)
	})

	t.Run("path outside the allow-list", func(t *testing.T) {
		_, err := e.Render("m", `{{ readFile .path }}`, map[string]any{"path": outside})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the readable file set")
	})

	t.Run("escape via dot-dot", func(t *testing.T) {
		_, err := e.Render("m", `{{ readFile .path }}`, map[string]any{"path": filepath.Join(appData, "..", "..", "outside.txt")})
		require.Error(t, err)
	})

	t.Run("missing file with fallback", func(t *testing.T) {
		out, err := e.Render("m", `{{ readFile (printf "%s/missing" .dir) "default" }}`, map[string]any{"dir": appData})
		require.NoError(t, err)
		assert.Equal(t, "default", out)
	})
}
