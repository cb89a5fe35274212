package codec

import (
	"regexp"
	"slices"

	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
)

// ServerEntry is the tool-visible form of one MCP server. Bookkeeping
// fields from the manifest never appear here.
type ServerEntry struct {
	Command string            `json:"command" yaml:"command" toml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
}

// Servers maps server names to entries.
type Servers map[string]ServerEntry

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ResolveEnv substitutes ${NAME} references from env. Unknown names
// become the empty string.
func ResolveEnv(value string, env map[string]string) string {
	if !envRef.MatchString(value) {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(ref string) string {
		return env[ref[2:len(ref)-1]]
	})
}

// EffectivelyEnabled reports whether item should be visible to tool: its
// state must not be disabled or deleted, the allow-list (when present)
// must name the tool, and the deny-list must not.
func EffectivelyEnabled(item *manifest.Item, tool integrations.ToolID) bool {
	if !item.Enabled() {
		return false
	}
	if len(item.Tools) > 0 && !slices.Contains(item.Tools, string(tool)) {
		return false
	}
	return !slices.Contains(item.ExcludeTools, string(tool))
}

// Generate builds the server table for tool from MCP items.
func Generate(items []*manifest.Item, tool integrations.ToolID, env map[string]string) Servers {
	servers := make(Servers)
	for _, it := range items {
		if it.Command == "" || !EffectivelyEnabled(it, tool) {
			continue
		}
		entry := ServerEntry{Command: ResolveEnv(it.Command, env)}
		for _, a := range it.Args {
			entry.Args = append(entry.Args, ResolveEnv(a, env))
		}
		if len(it.Env) > 0 {
			entry.Env = make(map[string]string, len(it.Env))
			for k, v := range it.Env {
				entry.Env[k] = ResolveEnv(v, env)
			}
		}
		servers[it.Name] = entry
	}
	return servers
}

// References returns the sorted, distinct ${NAME} references made by the
// command, args and env of enabled items.
func References(items []*manifest.Item) []string {
	seen := make(map[string]bool)
	collect := func(v string) {
		for _, m := range envRef.FindAllStringSubmatch(v, -1) {
			seen[m[1]] = true
		}
	}
	for _, it := range items {
		if !it.Enabled() {
			continue
		}
		collect(it.Command)
		for _, a := range it.Args {
			collect(a)
		}
		for _, v := range it.Env {
			collect(v)
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Names returns the server names in lexical order.
func (s Servers) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
