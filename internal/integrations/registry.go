package integrations

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mycelium-labs/mycelium/internal/manifest"
)

// ErrUnsupportedTool is returned for tool ids missing from the registry.
var ErrUnsupportedTool = errors.New("unsupported tool")

// ToolID identifies a supported AI tool integration.
type ToolID string

const (
	ClaudeCode ToolID = "claude-code"
	Codex      ToolID = "codex"
	GeminiCLI  ToolID = "gemini-cli"
	OpenCode   ToolID = "opencode"
	OpenClaw   ToolID = "openclaw"
	Continue   ToolID = "continue"
)

// Format is the serialization of a tool's MCP config file.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatTOML  Format = "toml"
	FormatYAML  Format = "yaml"
)

// Shape describes how servers are laid out under the MCP key.
type Shape string

const (
	// ShapeDirect places servers directly under the key.
	ShapeDirect Shape = "direct"
	// ShapeEntries nests them one level deeper under "entries".
	ShapeEntries Shape = "entries"
)

// MCPDescriptor locates a tool's MCP server table. Path is relative to the
// user's home directory and Key is a dotted path inside the document.
type MCPDescriptor struct {
	Path   string
	Format Format
	Key    string
	Shape  Shape
}

// KeyPath splits Key into its segments.
func (d MCPDescriptor) KeyPath() []string {
	if d.Key == "" {
		return nil
	}
	return strings.Split(d.Key, ".")
}

// Descriptor is the static description of one tool. Paths are relative to
// the user's home directory. A memory path names a file; every other
// section path names a directory of links.
type Descriptor struct {
	ID          ToolID
	DisplayName string
	Detect      string
	Paths       map[manifest.Section]string
	MCP         *MCPDescriptor
	// Settings is the tool's own settings file, when it has plugins that
	// can be taken over.
	Settings string
}

// Resolved is a Descriptor with every path made absolute.
type Resolved struct {
	Descriptor
	Home         string
	Dirs         map[manifest.Section]string
	MCPPath      string
	SettingsPath string
}

// AllTools returns all supported tool ids in display order.
func AllTools() []ToolID {
	return []ToolID{ClaudeCode, Codex, GeminiCLI, OpenCode, OpenClaw, Continue}
}

// toolRegistry maps each tool to its on-disk layout.
var toolRegistry = map[ToolID]Descriptor{
	ClaudeCode: {
		ID:          ClaudeCode,
		DisplayName: "Claude Code",
		Detect:      ".claude",
		Paths: map[manifest.Section]string{
			manifest.SectionSkills:   ".claude/skills",
			manifest.SectionAgents:   ".claude/agents",
			manifest.SectionCommands: ".claude/commands",
			manifest.SectionRules:    ".claude/rules",
			manifest.SectionHooks:    ".claude/hooks",
			manifest.SectionMemory:   ".claude/CLAUDE.md",
		},
		MCP:      &MCPDescriptor{Path: ".claude.json", Format: FormatJSON, Key: "mcpServers", Shape: ShapeDirect},
		Settings: ".claude/settings.json",
	},
	Codex: {
		ID:          Codex,
		DisplayName: "Codex",
		Detect:      ".codex",
		Paths: map[manifest.Section]string{
			manifest.SectionSkills: ".codex/skills",
			manifest.SectionMemory: ".codex/AGENTS.md",
		},
		MCP: &MCPDescriptor{Path: ".codex/config.toml", Format: FormatTOML, Key: "mcp.servers", Shape: ShapeDirect},
	},
	GeminiCLI: {
		ID:          GeminiCLI,
		DisplayName: "Gemini CLI",
		Detect:      ".gemini",
		Paths: map[manifest.Section]string{
			manifest.SectionSkills:   ".gemini/skills",
			manifest.SectionCommands: ".gemini/commands",
			manifest.SectionMemory:   ".gemini/GEMINI.md",
		},
		MCP: &MCPDescriptor{Path: ".gemini/settings.json", Format: FormatJSON, Key: "mcpServers", Shape: ShapeDirect},
	},
	OpenCode: {
		ID:          OpenCode,
		DisplayName: "OpenCode",
		Detect:      ".config/opencode",
		Paths: map[manifest.Section]string{
			manifest.SectionSkills:   ".config/opencode/skills",
			manifest.SectionAgents:   ".config/opencode/agent",
			manifest.SectionCommands: ".config/opencode/command",
			manifest.SectionMemory:   ".config/opencode/AGENTS.md",
		},
		MCP: &MCPDescriptor{Path: ".config/opencode/opencode.jsonc", Format: FormatJSONC, Key: "mcp", Shape: ShapeDirect},
	},
	OpenClaw: {
		ID:          OpenClaw,
		DisplayName: "OpenClaw",
		Detect:      ".openclaw",
		Paths: map[manifest.Section]string{
			manifest.SectionSkills: ".openclaw/skills",
		},
		MCP: &MCPDescriptor{Path: ".openclaw/openclaw.json", Format: FormatJSON, Key: "mcp", Shape: ShapeEntries},
	},
	Continue: {
		ID:          Continue,
		DisplayName: "Continue",
		Detect:      ".continue",
		Paths: map[manifest.Section]string{
			manifest.SectionRules: ".continue/rules",
		},
		MCP: &MCPDescriptor{Path: ".continue/config.yaml", Format: FormatYAML, Key: "mcp.servers", Shape: ShapeDirect},
	},
}

// ParseToolID converts a string to a ToolID, returning false if invalid.
func ParseToolID(s string) (ToolID, bool) {
	id := ToolID(s)
	if _, ok := toolRegistry[id]; ok {
		return id, true
	}
	return "", false
}

// Lookup returns the descriptor for a tool id.
func Lookup(id ToolID) (Descriptor, error) {
	d, ok := toolRegistry[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnsupportedTool, id)
	}
	return d, nil
}

// DisplayName returns the human-readable name of a tool, or the id itself
// for unknown tools.
func DisplayName(id ToolID) string {
	if d, ok := toolRegistry[id]; ok {
		return d.DisplayName
	}
	return string(id)
}

// Resolve makes every path in the descriptor absolute against home.
func (d Descriptor) Resolve(home string) Resolved {
	r := Resolved{
		Descriptor: d,
		Home:       home,
		Dirs:       make(map[manifest.Section]string, len(d.Paths)),
	}
	for s, p := range d.Paths {
		r.Dirs[s] = filepath.Join(home, filepath.FromSlash(p))
	}
	if d.MCP != nil {
		r.MCPPath = filepath.Join(home, filepath.FromSlash(d.MCP.Path))
	}
	if d.Settings != "" {
		r.SettingsPath = filepath.Join(home, filepath.FromSlash(d.Settings))
	}
	return r
}

// Supports reports whether the tool has a location for the section.
func (d Descriptor) Supports(s manifest.Section) bool {
	if s == manifest.SectionMCPs {
		return d.MCP != nil
	}
	_, ok := d.Paths[s]
	return ok
}

// IsInstalled reports whether the tool's detection directory exists
// under home.
func (d Descriptor) IsInstalled(home string) bool {
	info, err := os.Stat(filepath.Join(home, filepath.FromSlash(d.Detect)))
	return err == nil && info.IsDir()
}

// Installed returns the ids of tools detected under home.
func Installed(home string) []ToolID {
	var ids []ToolID
	for _, id := range AllTools() {
		if toolRegistry[id].IsInstalled(home) {
			ids = append(ids, id)
		}
	}
	return ids
}
