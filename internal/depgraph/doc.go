// Package depgraph partitions a set of applications into ordered batches
// based on their declared dependencies. Applications within one batch have
// no edges between each other and can be processed concurrently; every
// dependency of an application is placed in a strictly earlier batch.
package depgraph
