package manifest

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/casapod/storegen/internal/ctxlog"
	"github.com/casapod/storegen/internal/render"
	"github.com/casapod/storegen/internal/store"
)

// RenderFunc renders one template of one application with the stage-1
// function bindings already applied.
type RenderFunc func(ctx context.Context, app store.Application, tpl store.Template, tplCtx map[string]any) (string, error)

// Failure records one application's stage-1 error without aborting the rest
// of the collection.
type Failure struct {
	AppID string
	Err   error
}

// Collector renders every application's manifest and assembles the registry.
type Collector struct {
	Render RenderFunc
}

// Collect renders all manifests with the stage-1 context (`services` is the
// list of already-installed service ids), parses them against the manifest
// schema and builds the registry. Per-application failures are returned in
// the second value; a duplicate id is a fatal error since the registry would
// be ambiguous.
func (c *Collector) Collect(ctx context.Context, apps []store.Application, services []string) (*Registry, []Failure, error) {
	logger := ctxlog.FromContext(ctx)
	registry := newRegistry()
	dirByID := make(map[string]string, len(apps))
	var failures []Failure

	for _, app := range apps {
		tplCtx := map[string]any{"services": services}
		rendered, err := c.Render(ctx, app, app.Manifest, tplCtx)
		if err != nil {
			logger.Warn("Manifest render failed, skipping app.", "app", app.ID, "error", err)
			failures = append(failures, Failure{AppID: app.ID, Err: &render.RenderError{
				AppID:        app.ID,
				TemplatePath: app.Manifest.Path,
				Err:          err,
			}})
			continue
		}

		var parsed store.Manifest
		if err := yaml.Unmarshal([]byte(rendered), &parsed); err != nil {
			failures = append(failures, Failure{AppID: app.ID, Err: &SchemaError{
				AppID:  app.ID,
				Reason: err.Error(),
			}})
			continue
		}
		if parsed.ID == "" {
			failures = append(failures, Failure{AppID: app.ID, Err: &SchemaError{
				AppID:  app.ID,
				Reason: "missing required field: id",
			}})
			continue
		}
		if !parsed.Virtual && app.Definition == nil {
			logger.Warn("Non-virtual app ships no app definition.", "app", parsed.ID)
		}

		if prevDir, dup := dirByID[parsed.ID]; dup {
			return nil, nil, &DuplicateAppIDError{ID: parsed.ID, Dirs: []string{prevDir, app.Dir}}
		}
		dirByID[parsed.ID] = app.Dir

		// The manifest's declared id is authoritative from here on.
		app.ID = parsed.ID
		registry.entries[parsed.ID] = Entry{Manifest: parsed, Raw: rendered, App: app}

		if err := writeRendered(app.Manifest, rendered); err != nil {
			return nil, nil, fmt.Errorf("writing rendered manifest for %q: %w", parsed.ID, err)
		}
	}

	logger.Info("Manifest collection complete.", "apps", registry.Len(), "failed", len(failures))
	return registry, failures, nil
}

// writeRendered persists a rendered template next to its source. Static
// files render to themselves and are left untouched.
func writeRendered(tpl store.Template, rendered string) error {
	if tpl.OutPath == tpl.Path {
		return nil
	}
	return os.WriteFile(tpl.OutPath, []byte(rendered), 0o644)
}
