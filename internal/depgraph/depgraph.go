package depgraph

import (
	"context"
	"sort"

	"github.com/casapod/storegen/internal/ctxlog"
)

// Resolve computes the batch order for the given application ids using Kahn's
// layering algorithm. deps returns the declared dependency ids of an
// application; satisfied reports whether an id outside the current set is
// provided externally (an already-installed service) and therefore
// pre-satisfied.
//
// The returned partition is deterministic for a given edge set. Ids inside a
// batch are sorted to keep logs and tests stable, but callers must not rely
// on any ordering within a batch.
func Resolve(ctx context.Context, ids []string, deps func(id string) []string, satisfied func(id string) bool) ([][]string, error) {
	logger := ctxlog.FromContext(ctx)

	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	// In-degree counts only edges whose source is itself part of the set.
	// Edges to pre-satisfied services carry no ordering constraint.
	indegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string)
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range deps(id) {
			if dep == id {
				// A self-edge is a cycle of size one.
				return nil, &CyclicDependencyError{Members: []string{id}}
			}
			if present[dep] {
				indegree[id]++
				dependents[dep] = append(dependents[dep], id)
				continue
			}
			if !satisfied(dep) {
				return nil, &UnknownDependencyError{AppID: id, Dependency: dep}
			}
		}
	}

	var batches [][]string
	remaining := len(ids)
	ready := make([]string, 0, len(ids))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		batch := ready
		batches = append(batches, batch)
		remaining -= len(batch)

		ready = nil
		for _, id := range batch {
			for _, dependent := range dependents[id] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					ready = append(ready, dependent)
				}
			}
		}
	}

	if remaining > 0 {
		// Everything left has positive in-degree, so it sits inside a cycle
		// or downstream of one. Report only the actual cycle members.
		stuck := make(map[string]bool, remaining)
		for id, deg := range indegree {
			if deg > 0 {
				stuck[id] = true
			}
		}
		members := cycleMembers(stuck, deps)
		logger.Error("Dependency cycle detected.", "members", members)
		return nil, &CyclicDependencyError{Members: members}
	}

	logger.Debug("Dependency resolution complete.", "batches", len(batches), "apps", len(ids))
	return batches, nil
}
