package app

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/casapod/storegen/internal/config"
	"github.com/casapod/storegen/internal/script"
	"github.com/casapod/storegen/internal/store"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	cfg     *config.Config
	state   *store.State
	seed    string
	sandbox *script.Sandbox
}

// Options carries the entrypoint-level settings that are not part of the
// store configuration file.
type Options struct {
	LogLevel  string
	LogFormat string
}

// New is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, a compiled shim
// bundle, and the store's persisted state and seed loaded.
func New(outW io.Writer, cfg *config.Config, opts Options) (*App, error) {
	logger := newLogger(opts.LogLevel, opts.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	bundle, err := script.NewBundle()
	if err != nil {
		return nil, fmt.Errorf("compiling script shims: %w", err)
	}

	policy := &script.Policy{}
	if cfg.EnforceSyscallFilter {
		policy = script.DefaultPolicy()
	}

	state, err := store.LoadState(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	seed, err := store.ReadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("Store state loaded.", "installed", len(state.InstalledApps))

	return &App{
		outW:    outW,
		logger:  logger,
		cfg:     cfg,
		state:   state,
		seed:    seed,
		sandbox: script.New(bundle, policy, cfg.ScriptTimeout),
	}, nil
}

// State returns the application's installed state. This is primarily for
// testing.
func (a *App) State() *store.State {
	return a.state
}

// services returns the full set of installed service ids: external services
// from the configuration plus everything the user installed.
func (a *App) services() []string {
	ids := slices.Clone(a.cfg.ExternalServices)
	for _, id := range a.state.InstalledApps {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
