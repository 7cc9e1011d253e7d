package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/casapod/storegen/internal/ctxlog"
)

const (
	manifestFile   = "manifest.yml"
	definitionFile = "app.yml"
	templateSuffix = ".tmpl"
	configDir      = "config"
	helpersDir     = "_helpers"
)

// Discover scans appsDir for application directories. A subdirectory counts
// as an application when it contains a manifest.yml or manifest.yml.tmpl.
// The returned slice is sorted by directory name.
func Discover(ctx context.Context, appsDir string) ([]Application, error) {
	logger := ctxlog.FromContext(ctx)

	entries, err := os.ReadDir(appsDir)
	if err != nil {
		return nil, fmt.Errorf("reading apps dir: %w", err)
	}

	var apps []Application
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(appsDir, entry.Name())
		app, ok, err := loadApplication(entry.Name(), dir)
		if err != nil {
			return nil, fmt.Errorf("loading app dir %q: %w", entry.Name(), err)
		}
		if !ok {
			logger.Debug("Skipping directory without a manifest.", "dir", entry.Name())
			continue
		}
		apps = append(apps, app)
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	logger.Debug("App discovery complete.", "count", len(apps))
	return apps, nil
}

func loadApplication(id, dir string) (Application, bool, error) {
	manifest, ok, err := loadTemplate(filepath.Join(dir, manifestFile))
	if err != nil || !ok {
		return Application{}, false, err
	}

	app := Application{ID: id, Dir: dir, Manifest: manifest}

	if def, ok, err := loadTemplate(filepath.Join(dir, definitionFile)); err != nil {
		return Application{}, false, err
	} else if ok {
		app.Definition = &def
	}

	app.ConfigTemplates, err = loadConfigTemplates(filepath.Join(dir, configDir))
	if err != nil {
		return Application{}, false, err
	}

	app.Helpers, err = loadHelpers(filepath.Join(dir, helpersDir))
	if err != nil {
		return Application{}, false, err
	}

	return app, true, nil
}

// loadTemplate reads path+".tmpl" when present, falling back to the static
// file at path. The second return value is false when neither exists.
func loadTemplate(path string) (Template, bool, error) {
	for _, candidate := range []string{path + templateSuffix, path} {
		text, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Template{}, false, err
		}
		return Template{
			Path:    candidate,
			OutPath: strings.TrimSuffix(candidate, templateSuffix),
			Text:    string(text),
		}, true, nil
	}
	return Template{}, false, nil
}

func loadConfigTemplates(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), templateSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		templates = append(templates, Template{
			Path:    path,
			OutPath: strings.TrimSuffix(path, templateSuffix),
			Text:    string(text),
		})
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Path < templates[j].Path })
	return templates, nil
}

// loadHelpers concatenates the app's _helpers/*.js snippets in name order so
// helper detection and execution see one stable source text.
func loadHelpers(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".js") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		text, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		sb.Write(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
