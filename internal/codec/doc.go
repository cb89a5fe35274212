// Package codec turns manifest MCP items into the server table a tool
// expects and merges that table into the tool's existing config file.
//
// Every codec replaces only the managed subtree (for example mcpServers or
// mcp.servers) and keeps the rest of the document. Content that fails to
// parse is treated as an empty document.
package codec
