// Package render wraps text/template behind a fixed, explicit function
// registry. Rendering is a pure function of template text and context except
// for the registered script-backed functions, which dispatch into the script
// sandbox.
package render
