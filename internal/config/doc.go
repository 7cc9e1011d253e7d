// Package config loads the store configuration from an HCL file
// (store.hcl). Every field is optional; a missing file yields a fully
// defaulted configuration rooted at the file's directory. The HCL
// evaluation context exposes a `root` string variable so paths in the file
// can be written relative to the store root.
package config
