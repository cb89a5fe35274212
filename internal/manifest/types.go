package manifest

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// CurrentVersion is the manifest format version written by New.
const CurrentVersion = "1.0.0"

// Section groups items of one kind.
type Section string

// Known sections.
const (
	SectionSkills   Section = "skills"
	SectionMCPs     Section = "mcps"
	SectionAgents   Section = "agents"
	SectionRules    Section = "rules"
	SectionCommands Section = "commands"
	SectionHooks    Section = "hooks"
	SectionMemory   Section = "memory"
)

// Sections lists every section in manifest order.
var Sections = []Section{
	SectionSkills,
	SectionMCPs,
	SectionAgents,
	SectionRules,
	SectionCommands,
	SectionHooks,
	SectionMemory,
}

var sectionAliases = map[string]Section{
	"skill":   SectionSkills,
	"mcp":     SectionMCPs,
	"agent":   SectionAgents,
	"rule":    SectionRules,
	"command": SectionCommands,
	"hook":    SectionHooks,
}

// ParseSection converts a user-supplied string into a Section. Singular
// forms ("skill", "mcp", ...) are accepted.
func ParseSection(s string) (Section, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if sec, ok := sectionAliases[s]; ok {
		return sec, nil
	}
	for _, sec := range Sections {
		if string(sec) == s {
			return sec, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q (valid: skill, mcp, agent, rule, command, hook, memory)", s)
}

// FileBacked reports whether items in the section point at source content
// on disk rather than carrying an inline payload.
func (s Section) FileBacked() bool {
	return s != SectionMCPs
}

// Singular returns the display noun for one item of the section.
func (s Section) Singular() string {
	for alias, sec := range sectionAliases {
		if sec == s {
			return alias
		}
	}
	return string(s)
}

// State is the lifecycle state of an item.
type State string

const (
	StateEnabled  State = "enabled"
	StateDisabled State = "disabled"
	StateDeleted  State = "deleted"
)

// PluginOrigin marks an item as owned by a taken-over plugin.
type PluginOrigin struct {
	PluginID string `yaml:"pluginId" json:"pluginId"`
}

// PluginTakeover records that a plugin's items are managed here instead
// of by the plugin itself.
type PluginTakeover struct {
	TakenOverAt time.Time `yaml:"takenOverAt" json:"takenOverAt"`
	Version     string    `yaml:"version,omitempty" json:"version,omitempty"`
	Tools       []string  `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// Item is one declared unit. Name and Section come from the item's
// position in the manifest and are not serialized.
type Item struct {
	Name    string  `yaml:"-" json:"-"`
	Section Section `yaml:"-" json:"-"`

	State        State             `yaml:"state,omitempty" json:"state,omitempty"`
	Command      string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args         []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env          map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Path         string            `yaml:"path,omitempty" json:"path,omitempty"`
	Tools        []string          `yaml:"tools,omitempty" json:"tools,omitempty"`
	ExcludeTools []string          `yaml:"excludeTools,omitempty" json:"excludeTools,omitempty"`
	Source       string            `yaml:"source,omitempty" json:"source,omitempty"`
	PluginOrigin *PluginOrigin     `yaml:"pluginOrigin,omitempty" json:"pluginOrigin,omitempty"`
	AddedAt      time.Time         `yaml:"addedAt,omitempty" json:"addedAt,omitempty"`
}

// EffectiveState returns the item's state, treating an absent state as
// enabled.
func (it *Item) EffectiveState() State {
	if it == nil || it.State == "" {
		return StateEnabled
	}
	return it.State
}

// Enabled reports whether the item is neither disabled nor deleted.
func (it *Item) Enabled() bool {
	s := it.EffectiveState()
	return s != StateDisabled && s != StateDeleted
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	c.Args = slices.Clone(it.Args)
	c.Tools = slices.Clone(it.Tools)
	c.ExcludeTools = slices.Clone(it.ExcludeTools)
	if it.Env != nil {
		c.Env = make(map[string]string, len(it.Env))
		for k, v := range it.Env {
			c.Env[k] = v
		}
	}
	if it.PluginOrigin != nil {
		po := *it.PluginOrigin
		c.PluginOrigin = &po
	}
	return &c
}

// SamePayload reports whether two items declare the same thing. Position
// (name, section) and the AddedAt bookkeeping timestamp are ignored.
func (it *Item) SamePayload(other *Item) bool {
	if it == nil || other == nil {
		return it == other
	}
	if it.EffectiveState() != other.EffectiveState() ||
		it.Command != other.Command ||
		it.Path != other.Path ||
		it.Source != other.Source {
		return false
	}
	if !slices.Equal(it.Args, other.Args) ||
		!slices.Equal(it.Tools, other.Tools) ||
		!slices.Equal(it.ExcludeTools, other.ExcludeTools) {
		return false
	}
	if len(it.Env) != len(other.Env) {
		return false
	}
	for k, v := range it.Env {
		if ov, ok := other.Env[k]; !ok || ov != v {
			return false
		}
	}
	switch {
	case it.PluginOrigin == nil && other.PluginOrigin == nil:
		return true
	case it.PluginOrigin == nil || other.PluginOrigin == nil:
		return false
	default:
		return it.PluginOrigin.PluginID == other.PluginOrigin.PluginID
	}
}

// Manifest is the root document of one scope.
type Manifest struct {
	Version  string           `yaml:"version" json:"version"`
	Skills   map[string]*Item `yaml:"skills,omitempty" json:"skills,omitempty"`
	MCPs     map[string]*Item `yaml:"mcps,omitempty" json:"mcps,omitempty"`
	Agents   map[string]*Item `yaml:"agents,omitempty" json:"agents,omitempty"`
	Rules    map[string]*Item `yaml:"rules,omitempty" json:"rules,omitempty"`
	Commands map[string]*Item `yaml:"commands,omitempty" json:"commands,omitempty"`
	Hooks    map[string]*Item `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Memory   map[string]*Item `yaml:"memory,omitempty" json:"memory,omitempty"`

	TakenOverPlugins map[string]*PluginTakeover `yaml:"takenOverPlugins,omitempty" json:"takenOverPlugins,omitempty"`
}

// New returns an empty manifest at the current version.
func New() *Manifest {
	return &Manifest{Version: CurrentVersion}
}

// sectionPtr returns the address of the map backing a section.
func (m *Manifest) sectionPtr(s Section) *map[string]*Item {
	switch s {
	case SectionSkills:
		return &m.Skills
	case SectionMCPs:
		return &m.MCPs
	case SectionAgents:
		return &m.Agents
	case SectionRules:
		return &m.Rules
	case SectionCommands:
		return &m.Commands
	case SectionHooks:
		return &m.Hooks
	case SectionMemory:
		return &m.Memory
	}
	return nil
}

// Section returns the live map for a section. It may be nil.
func (m *Manifest) Section(s Section) map[string]*Item {
	if m == nil {
		return nil
	}
	if p := m.sectionPtr(s); p != nil {
		return *p
	}
	return nil
}

// Get returns the named item in a section, or nil.
func (m *Manifest) Get(s Section, name string) *Item {
	return m.Section(s)[name]
}

// Set stores item under name in section s, creating the section map if
// needed. The item's Name and Section fields are updated to match.
func (m *Manifest) Set(s Section, name string, item *Item) {
	p := m.sectionPtr(s)
	if p == nil {
		return
	}
	if *p == nil {
		*p = make(map[string]*Item)
	}
	item.Name = name
	item.Section = s
	(*p)[name] = item
}

// Delete removes the named item from a section.
func (m *Manifest) Delete(s Section, name string) {
	if p := m.sectionPtr(s); p != nil && *p != nil {
		delete(*p, name)
	}
}

// Items returns the items of a section sorted by name.
func (m *Manifest) Items(s Section) []*Item {
	sec := m.Section(s)
	names := make([]string, 0, len(sec))
	for name := range sec {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]*Item, 0, len(names))
	for _, name := range names {
		items = append(items, sec[name])
	}
	return items
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	c := &Manifest{Version: m.Version}
	for _, s := range Sections {
		for name, it := range m.Section(s) {
			c.Set(s, name, it.Clone())
		}
	}
	if m.TakenOverPlugins != nil {
		c.TakenOverPlugins = make(map[string]*PluginTakeover, len(m.TakenOverPlugins))
		for id, t := range m.TakenOverPlugins {
			tc := *t
			tc.Tools = slices.Clone(t.Tools)
			c.TakenOverPlugins[id] = &tc
		}
	}
	return c
}

// normalize fills in Name and Section on every item and drops nil entries
// left by empty YAML mappings.
func (m *Manifest) normalize() {
	for _, s := range Sections {
		sec := m.Section(s)
		for name, it := range sec {
			if it == nil {
				it = &Item{}
				sec[name] = it
			}
			it.Name = name
			it.Section = s
		}
	}
	for id, t := range m.TakenOverPlugins {
		if t == nil {
			m.TakenOverPlugins[id] = &PluginTakeover{}
		}
	}
}
