// Package cli builds the command tree, validates user input, and handles
// process-level concerns like exit codes. It translates flags into the
// application's configuration and invokes the app-level operations.
package cli
