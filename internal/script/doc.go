// Package script executes small user-authored script snippets on behalf of
// the template engine. Each invocation runs in a fresh, isolated interpreter
// instance that can reach exactly two host functions: one for secure random
// bytes and one for debug logging. A syscall allow-list is applied to the
// executing thread as a second layer of containment, independent of the
// interpreter's own restrictions.
package script
