// Package app wires the store components together: configuration, logger,
// script sandbox, installed state, and the pipeline orchestrator. It exposes
// the operations the CLI invokes (Generate, Install, Uninstall), decoupled
// from flag parsing and exit codes.
package app
