// Package integrations is the static table of supported AI tools: where each
// tool keeps skills, agents, rules and other file-backed items, which file
// holds its MCP server configuration, and in what format.
package integrations
