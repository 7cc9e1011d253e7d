package render

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// RenderError reports a failed render of one application's template.
type RenderError struct {
	AppID        string
	TemplatePath string
	Err          error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("app %q: rendering %s: %v", e.AppID, e.TemplatePath, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Engine renders template text against a context map. Its function table is
// assembled explicitly with Bind; there is no ambient function lookup.
// Engines are cheap and assembled per application and stage, because the
// bound functions close over per-app state.
type Engine struct {
	funcs template.FuncMap
}

// NewEngine returns an engine preloaded with the sprig helper functions.
// Host access is stripped: templates must not observe env vars or perform
// DNS lookups.
func NewEngine() *Engine {
	funcs := sprig.TxtFuncMap()
	delete(funcs, "env")
	delete(funcs, "expandenv")
	delete(funcs, "getHostByName")
	return &Engine{funcs: funcs}
}

// Bind registers a template function under the given name, replacing any
// previous binding.
func (e *Engine) Bind(name string, fn any) {
	e.funcs[name] = fn
}

// Render executes the template text against ctx. A reference to a variable
// missing from ctx is an error naming the variable, not empty output.
func (e *Engine) Render(name, text string, ctx map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(e.funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}
