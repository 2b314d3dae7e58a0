// Package patch applies user-edited YAML to live cluster resources.
//
// Engine.Patch runs a fixed sequence: parse the document, look up its kind in
// the registry, strip server-managed fields, resolve the cluster, dry-run a
// strategic merge patch, apply it for real, and diff the YAML the user was shown
// against the object the server returned. Failures are reported as a
// PatchResult with an ErrorKind; only a dry-run rejection carries the API
// server's own message.
//
// Diff and RenderYAML are usable on their own, for example to preview an edit
// before submitting it.
package patch
