// Package linker keeps a tool's link directory (skills, agents, commands,
// rules, hooks) in agreement with the declared items: one symlink per
// enabled item pointing at its source content. Existing files in the way
// are moved aside, never deleted.
package linker
