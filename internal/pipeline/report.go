package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Stage names used in failure records and logs.
const (
	StageManifests   = "manifests"
	StageDefinitions = "definitions"
	StageConfigs     = "configs"
)

// Failure is one application's recorded error at one stage.
type Failure struct {
	AppID string
	Stage string
	Err   error
}

// Report is the aggregate outcome of a run that reached completion. Fatal
// structural errors abort the run instead and never produce a report.
type Report struct {
	// Registered ids made it into the registry during stage 1.
	Registered []string
	// Rendered ids completed every stage that applied to them.
	Rendered []string
	Failures []Failure

	// NextRegen is the earliest regeneration time any config template
	// requested via requireRegen, nil when none did. The caller persists it.
	NextRegen *time.Time
}

// Err returns a single aggregate error when any application failed, nil
// otherwise. The caller turns this into a non-zero exit.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.Failures))
	seen := make(map[string]bool)
	for _, failure := range r.Failures {
		if !seen[failure.AppID] {
			seen[failure.AppID] = true
			ids = append(ids, failure.AppID)
		}
	}
	sort.Strings(ids)
	return fmt.Errorf("%d app(s) failed: %s", len(ids), strings.Join(ids, ", "))
}

// Failed reports whether the app has a recorded failure at any stage.
func (r *Report) Failed(id string) bool {
	for _, failure := range r.Failures {
		if failure.AppID == id {
			return true
		}
	}
	return false
}
