package store

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"
)

// State is the mutable installed-state of the store, persisted as JSON. It
// records which applications the user has installed and their settings.
type State struct {
	InstalledApps []string                  `json:"installedApps"`
	AppSettings   map[string]map[string]any `json:"appSettings,omitempty"`

	// NextAppRegen is the unix time at which the store wants to be
	// regenerated again, 0 when no config template requested one.
	NextAppRegen int64 `json:"nextAppRegen,omitempty"`

	path string
}

// LoadState reads the state file at path, returning an empty state when the
// file does not exist yet.
func LoadState(path string) (*State, error) {
	state := &State{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing state file %q: %w", path, err)
	}
	return state, nil
}

// Save writes the state back to its file.
func (s *State) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(data, '\n'), 0o644)
}

// Installed reports whether the given app id is installed.
func (s *State) Installed(id string) bool {
	return slices.Contains(s.InstalledApps, id)
}

// Install marks an app as installed. Idempotent.
func (s *State) Install(id string) {
	if !s.Installed(id) {
		s.InstalledApps = append(s.InstalledApps, id)
	}
}

// Uninstall removes an app from the installed set and drops its settings.
func (s *State) Uninstall(id string) {
	s.InstalledApps = slices.DeleteFunc(s.InstalledApps, func(app string) bool {
		return app == id
	})
	delete(s.AppSettings, id)
}

// SetNextRegen records when the store should next be regenerated, replacing
// any previously recorded time.
func (s *State) SetNextRegen(at time.Time) {
	s.NextAppRegen = at.Unix()
}

// SetSettings stores the settings for an app, replacing any previous ones.
func (s *State) SetSettings(id string, settings map[string]any) {
	if s.AppSettings == nil {
		s.AppSettings = make(map[string]map[string]any)
	}
	s.AppSettings[id] = settings
}

// Settings returns the stored settings for an app, or nil.
func (s *State) Settings(id string) map[string]any {
	return s.AppSettings[id]
}
