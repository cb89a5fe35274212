// Package cli defines the Cobra command tree for the mycelium CLI. Each file
// in this package registers one top-level command (sync, verify, enable,
// etc.) with the root command. Command implementations delegate to internal
// packages for business logic and only handle flag parsing, output
// formatting and exit status.
package cli
