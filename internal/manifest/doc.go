// Package manifest renders application manifests and assembles them into the
// immutable registry that stages two and three read from.
package manifest
