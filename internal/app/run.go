package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/casapod/storegen/internal/ctxlog"
	"github.com/casapod/storegen/internal/pipeline"
	"github.com/casapod/storegen/internal/store"
)

// Generate runs the full pipeline over the store. It returns an error when
// the run aborts structurally or when any application failed to render.
func (a *App) Generate(ctx context.Context) error {
	report, err := a.generate(ctx)
	if err != nil {
		return err
	}
	return report.Err()
}

// generate runs the pipeline once. The returned error covers only fatal
// structural conditions; per-app failures live in the report.
func (a *App) generate(ctx context.Context) (*pipeline.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("Generation started.", "apps_dir", a.cfg.AppsDir)

	apps, err := store.Discover(ctx, a.cfg.AppsDir)
	if err != nil {
		return nil, err
	}

	orch := pipeline.New(pipeline.Options{
		Root:         a.cfg.Root,
		RegistryPath: a.cfg.RegistryFile,
		Workers:      a.cfg.Workers,
		Services:     a.services(),
		Seed:         a.seed,
		Sandbox:      a.sandbox,
		Settings:     a.state.Settings,
	})
	report, err := orch.Run(ctx, apps)
	if err != nil {
		return nil, err
	}
	if report.NextRegen != nil {
		a.state.SetNextRegen(*report.NextRegen)
		if err := a.state.Save(); err != nil {
			return nil, err
		}
		a.logger.Info("Store regeneration requested.", "at", report.NextRegen)
	}
	return report, nil
}

// Install marks an app as installed and regenerates the store. The store is
// generated twice: once before the app counts as installed, so its own
// output exists, and once after, so dependents see the newly available
// service. settingsJSON optionally carries the app's user settings. An
// unrelated app's render failure does not block the installation.
func (a *App) Install(ctx context.Context, id, settingsJSON string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if settingsJSON != "" {
		var settings map[string]any
		if err := json.Unmarshal([]byte(settingsJSON), &settings); err != nil {
			return fmt.Errorf("parsing settings: %w", err)
		}
		a.state.SetSettings(id, settings)
	}

	report, err := a.generate(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(report.Registered, id) {
		return fmt.Errorf("unknown app %q", id)
	}
	if report.Failed(id) {
		return fmt.Errorf("app %q failed to render: %w", id, report.Err())
	}

	a.state.Install(id)
	if err := a.state.Save(); err != nil {
		return err
	}
	a.logger.Info("App installed.", "app", id)

	report, err = a.generate(ctx)
	if err != nil {
		return err
	}
	if report.Failed(id) {
		return fmt.Errorf("app %q failed to render: %w", id, report.Err())
	}
	if reportErr := report.Err(); reportErr != nil {
		// The installation itself succeeded; a sibling's failure is only
		// worth a warning here and surfaces on the next generate run.
		a.logger.Warn("Some apps failed to render.", "error", reportErr)
	}
	return nil
}

// Uninstall removes an app from the installed state and regenerates the
// store so dependents stop seeing it.
func (a *App) Uninstall(ctx context.Context, id string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if !a.state.Installed(id) {
		return fmt.Errorf("app %q is not installed", id)
	}
	a.state.Uninstall(id)
	if err := a.state.Save(); err != nil {
		return err
	}
	a.logger.Info("App uninstalled.", "app", id)

	return a.Generate(ctx)
}
