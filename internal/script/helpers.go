package script

import (
	"regexp"
	"strings"
)

// functionDecl matches top-level `function name(params)` declarations,
// optionally async. Nested functions are indented in practice and templates
// could not name them anyway.
var functionDecl = regexp.MustCompile(`(?m)^(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(([^)]*)\)`)

// ExportedFunctions returns the names of the helper functions a snippet
// makes callable from templates: top-level functions taking exactly one
// parameter (the named-arguments object). Duplicates are reported once.
func ExportedFunctions(src string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, match := range functionDecl.FindAllStringSubmatch(src, -1) {
		name, params := match[1], strings.TrimSpace(match[2])
		if params == "" || strings.Contains(params, ",") {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
