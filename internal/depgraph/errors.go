package depgraph

import (
	"fmt"
	"strings"
)

// CyclicDependencyError is returned when the dependency edges between the
// applications of one stage form at least one cycle. Members holds the ids of
// every application stuck inside a cycle, sorted.
type CyclicDependencyError struct {
	Members []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency between apps: %s", strings.Join(e.Members, ", "))
}

// UnknownDependencyError is returned when an application declares a dependency
// that is neither part of the current run nor an already-installed service.
type UnknownDependencyError struct {
	AppID      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("app %q depends on unknown app %q", e.AppID, e.Dependency)
}
