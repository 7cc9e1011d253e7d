// Package pipeline drives the three-stage processing run: collect manifests
// into the registry, render app definitions in dependency batches, then
// render config-file templates. Structural problems (duplicate ids, unknown
// dependencies, cycles) abort the run; a single application's render or
// script failure is recorded and skipped so unrelated applications still
// complete.
package pipeline
