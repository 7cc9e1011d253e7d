package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/casapod/storegen/internal/ctxlog"
	"github.com/casapod/storegen/internal/depgraph"
	"github.com/casapod/storegen/internal/manifest"
	"github.com/casapod/storegen/internal/render"
	"github.com/casapod/storegen/internal/store"
)

// Options wires an orchestrator. Sandbox and Seed feed the per-app template
// function bindings; Services lists the already-installed service ids whose
// dependencies count as pre-satisfied.
type Options struct {
	Root         string
	RegistryPath string
	Workers      int
	Services     []string
	Seed         string
	Sandbox      render.Invoker

	// Settings returns the user's stored settings for an app, nil when the
	// app has none.
	Settings func(appID string) map[string]any
}

// Orchestrator runs the full processing pipeline over a set of discovered
// applications.
type Orchestrator struct {
	opts Options
}

func New(opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Settings == nil {
		opts.Settings = func(string) map[string]any { return nil }
	}
	return &Orchestrator{opts: opts}
}

// definition is one application's rendered app definition: the raw text, the
// schema-checked form, and the generic form exposed to later templates.
type definition struct {
	raw     string
	parsed  store.AppDefinition
	generic map[string]any
}

// Run drives the stages in order. The returned error is non-nil only for
// fatal structural conditions (duplicate id, unknown dependency, cycle, I/O
// on shared outputs); per-application failures land in the report instead.
func (o *Orchestrator) Run(ctx context.Context, apps []store.Application) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	report := &Report{}

	// Stage 1: manifests. No ordering, manifests only see the installed
	// services, never sibling manifests.
	collector := &manifest.Collector{Render: o.renderManifest}
	registry, failures, err := collector.Collect(ctx, apps, o.opts.Services)
	if err != nil {
		return nil, err
	}
	for _, failure := range failures {
		report.Failures = append(report.Failures, Failure{AppID: failure.AppID, Stage: StageManifests, Err: failure.Err})
	}
	report.Registered = registry.IDs()
	if o.opts.RegistryPath != "" {
		if err := registry.WriteFile(o.opts.RegistryPath); err != nil {
			return nil, err
		}
	}

	// Stage 2: app definitions in dependency batches.
	batches, err := depgraph.Resolve(ctx, registry.IDs(), func(id string) []string {
		entry, _ := registry.Get(id)
		return entry.Manifest.Dependencies
	}, func(id string) bool {
		return slices.Contains(o.opts.Services, id)
	})
	if err != nil {
		return nil, err
	}

	registrySnapshot := registry.Snapshot()
	definitions := make(map[string]definition)
	var mu sync.Mutex

	for i, batch := range batches {
		logger.Debug("Rendering app definition batch.", "batch", i, "apps", batch)

		// Later batches see the definitions of all earlier batches; apps in
		// the same batch never see each other.
		visible := genericDefinitions(definitions)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(o.opts.Workers)
		for _, id := range batch {
			group.Go(func() error {
				entry, _ := registry.Get(id)
				if entry.Manifest.Virtual || entry.App.Definition == nil {
					return nil
				}
				def, err := o.renderDefinition(groupCtx, entry, registrySnapshot, visible)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failures = append(report.Failures, Failure{AppID: id, Stage: StageDefinitions, Err: err})
					return nil
				}
				definitions[id] = def
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}

	// Stage 3: config files. Every definition exists now, so there is no
	// batching constraint left. The failed set is snapshotted up front:
	// stage-2 failures are complete here, and reading report.Failures while
	// stage-3 workers append to it would race.
	failedEarlier := make(map[string]bool, len(report.Failures))
	for _, failure := range report.Failures {
		failedEarlier[failure.AppID] = true
	}
	allDefinitions := genericDefinitions(definitions)
	scheduleRegen := func(at time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		if report.NextRegen == nil || at.Before(*report.NextRegen) {
			report.NextRegen = &at
		}
		return nil
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.opts.Workers)
	for _, id := range registry.IDs() {
		entry, _ := registry.Get(id)
		if entry.Manifest.Virtual {
			continue
		}
		if failedEarlier[id] {
			// A failed stage 2 leaves no app definition to expose.
			logger.Warn("Skipping config rendering for app that failed earlier.", "app", id)
			continue
		}
		if len(entry.App.ConfigTemplates) == 0 {
			continue
		}
		group.Go(func() error {
			errs := o.renderConfigs(groupCtx, entry, registrySnapshot, allDefinitions, scheduleRegen)
			if len(errs) == 0 {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, err := range errs {
				report.Failures = append(report.Failures, Failure{AppID: id, Stage: StageConfigs, Err: err})
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, id := range registry.IDs() {
		if !report.Failed(id) {
			report.Rendered = append(report.Rendered, id)
		}
	}
	logger.Info("Pipeline complete.", "rendered", len(report.Rendered), "failed", len(report.Failures))
	return report, nil
}

// engineFor assembles the per-app template engine for one stage. readRoots
// and scheduleRegen stay nil outside stage 3, which keeps readFile and
// requireRegen unavailable there.
func (o *Orchestrator) engineFor(ctx context.Context, app store.Application, readRoots []string, scheduleRegen func(time.Time) error) *render.Engine {
	engine := render.NewEngine()
	render.BindFuncs(ctx, engine, render.Funcs{
		AppID:         app.ID,
		Seed:          o.opts.Seed,
		Sandbox:       o.opts.Sandbox,
		Helpers:       app.Helpers,
		ReadRoots:     readRoots,
		ScheduleRegen: scheduleRegen,
	})
	return engine
}

func (o *Orchestrator) renderManifest(ctx context.Context, app store.Application, tpl store.Template, tplCtx map[string]any) (string, error) {
	return o.engineFor(ctx, app, nil, nil).Render(tpl.Path, tpl.Text, tplCtx)
}

func (o *Orchestrator) renderDefinition(ctx context.Context, entry manifest.Entry, registrySnapshot map[string]any, visible map[string]any) (definition, error) {
	tpl := *entry.App.Definition
	tplCtx := map[string]any{
		"services":       o.opts.Services,
		"registry":       registrySnapshot,
		"appDefinitions": visible,
		"settings":       o.opts.Settings(entry.App.ID),
	}

	raw, err := o.engineFor(ctx, entry.App, nil, nil).Render(tpl.Path, tpl.Text, tplCtx)
	if err != nil {
		return definition{}, &render.RenderError{AppID: entry.App.ID, TemplatePath: tpl.Path, Err: err}
	}

	var parsed store.AppDefinition
	if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
		return definition{}, &render.RenderError{AppID: entry.App.ID, TemplatePath: tpl.Path,
			Err: fmt.Errorf("rendered app definition is not valid YAML: %w", err)}
	}
	var generic map[string]any
	if err := yaml.Unmarshal([]byte(raw), &generic); err != nil {
		return definition{}, &render.RenderError{AppID: entry.App.ID, TemplatePath: tpl.Path, Err: err}
	}

	if err := writeRendered(tpl, raw); err != nil {
		return definition{}, err
	}
	return definition{raw: raw, parsed: parsed, generic: generic}, nil
}

func (o *Orchestrator) renderConfigs(ctx context.Context, entry manifest.Entry, registrySnapshot map[string]any, allDefinitions map[string]any, scheduleRegen func(time.Time) error) []error {
	id := entry.App.ID
	roots := []string{filepath.Join(o.opts.Root, "app-data", id)}
	for _, dep := range entry.Manifest.Dependencies {
		roots = append(roots, filepath.Join(o.opts.Root, "app-data", dep))
	}

	engine := o.engineFor(ctx, entry.App, roots, scheduleRegen)
	tplCtx := map[string]any{
		"services":       o.opts.Services,
		"registry":       registrySnapshot,
		"appDefinitions": allDefinitions,
		"appDefinition":  allDefinitions[id],
		"settings":       o.opts.Settings(id),
	}

	var errs []error
	for _, tpl := range entry.App.ConfigTemplates {
		rendered, err := engine.Render(tpl.Path, tpl.Text, tplCtx)
		if err != nil {
			errs = append(errs, &render.RenderError{AppID: id, TemplatePath: tpl.Path, Err: err})
			continue
		}
		if err := writeRendered(tpl, rendered); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func genericDefinitions(definitions map[string]definition) map[string]any {
	out := make(map[string]any, len(definitions))
	for id, def := range definitions {
		out[id] = def.generic
	}
	return out
}

func writeRendered(tpl store.Template, rendered string) error {
	if tpl.OutPath == tpl.Path {
		return nil
	}
	return os.WriteFile(tpl.OutPath, []byte(rendered), 0o644)
}
