// Package syncer pushes the merged manifest into every tool: MCP server
// tables through the codecs, file-backed items through the linker and
// memory items into the tool's instruction file. Each tool runs as its own
// ordered pipeline (backup, inject, write); tools run concurrently and a
// failure in one never stops the others.
package syncer
