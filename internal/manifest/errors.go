package manifest

import (
	"fmt"
	"strings"
)

// DuplicateAppIDError is fatal: two application directories declared the same
// id, so the registry would be ambiguous.
type DuplicateAppIDError struct {
	ID   string
	Dirs []string
}

func (e *DuplicateAppIDError) Error() string {
	return fmt.Sprintf("app id %q is declared by multiple directories: %s", e.ID, strings.Join(e.Dirs, ", "))
}

// SchemaError means a rendered manifest did not satisfy the manifest schema.
// It is recorded against the offending application only.
type SchemaError struct {
	AppID  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("app %q: invalid manifest: %s", e.AppID, e.Reason)
}
