// Package logging builds the *slog.Logger used across the CLI and the sync
// engine. Command output meant for the user is still written directly to
// the command's writer; this logger carries diagnostics (per-tool progress,
// advisory step failures, recovered parse errors) to stderr.
package logging
