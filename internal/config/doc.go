// Package config manages user-level settings stored at ~/.mycelium/config.yaml.
// Settings can be overridden with MYCELIUM_* environment variables. It covers
// which tools to sync by default, whether tool configs are backed up before a
// write, orphan symlink cleanup, logging, and the .env file that feeds ${NAME}
// substitution in MCP entries.
package config
