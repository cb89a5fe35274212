// Package manifest holds the canonical declaration model (items grouped
// into sections, each with an enable state) and the per-scope store that
// reads and writes manifest.yaml. Saves are validated against an embedded
// JSON schema before anything touches disk.
package manifest
