// Package store models the on-disk layout of an app store: application
// directories with their manifest, app-definition and config-file templates,
// plus the mutable installed-state file and the store's entropy seed.
package store
