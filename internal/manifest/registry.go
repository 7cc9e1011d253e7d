package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/casapod/storegen/internal/store"
)

// Entry is one application's place in the registry: its parsed manifest, the
// rendered manifest text, and the application it came from (with the
// manifest's declared id made authoritative).
type Entry struct {
	Manifest store.Manifest
	Raw      string
	App      store.Application
}

// Registry maps application ids to their rendered manifests. It is built
// exactly once during stage 1 and is read-only afterwards, so concurrent
// readers need no locking.
type Registry struct {
	entries map[string]Entry
}

func newRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Get returns the entry for an id.
func (r *Registry) Get(id string) (Entry, bool) {
	entry, ok := r.entries[id]
	return entry, ok
}

// IDs returns every registered id, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered applications.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Snapshot returns the registry as a plain map for use as the `registry`
// template variable. The result is freshly built on each call; mutating it
// cannot affect the registry.
func (r *Registry) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(r.entries))
	for id, entry := range r.entries {
		m := map[string]any{
			"id":           entry.Manifest.ID,
			"name":         entry.Manifest.Name,
			"virtual":      entry.Manifest.Virtual,
			"dependencies": append([]string(nil), entry.Manifest.Dependencies...),
		}
		for k, v := range entry.Manifest.Extra {
			m[k] = v
		}
		snapshot[id] = m
	}
	return snapshot
}

// WriteFile persists the registry as a JSON document mapping id to manifest,
// for downstream store tooling.
func (r *Registry) WriteFile(path string) error {
	manifests := make(map[string]store.Manifest, len(r.entries))
	for id, entry := range r.entries {
		manifests[id] = entry.Manifest
	}
	data, err := json.MarshalIndent(manifests, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}
