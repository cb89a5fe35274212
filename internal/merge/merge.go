// Package merge combines the global and project manifests into the single
// view that sync and verify operate on.
package merge

import (
	"sort"

	"github.com/mycelium-labs/mycelium/internal/manifest"
)

// Scope identifies which manifest an entry came from.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

// Conflict records a name defined in both scopes with different payloads.
// The project value is the one that wins.
type Conflict struct {
	Name         string
	Section      manifest.Section
	GlobalValue  *manifest.Item
	ProjectValue *manifest.Item
}

// Entry is one item of the merged view together with its origin.
type Entry struct {
	Item  *manifest.Item
	Scope Scope
}

// MergedConfig is a read-only union of the two scopes. It owns deep copies
// of every item, so callers may not mutate the source manifests through it.
type MergedConfig struct {
	sections  map[manifest.Section]map[string]Entry
	conflicts []Conflict
	plugins   map[string]*manifest.PluginTakeover
}

// MergeConfigs overlays project onto global by name within each section.
// Either argument may be nil. Neither input is modified.
func MergeConfigs(global, project *manifest.Manifest) *MergedConfig {
	mc := &MergedConfig{
		sections: make(map[manifest.Section]map[string]Entry, len(manifest.Sections)),
		plugins:  make(map[string]*manifest.PluginTakeover),
	}

	for _, s := range manifest.Sections {
		entries := make(map[string]Entry)
		for name, it := range global.Section(s) {
			entries[name] = Entry{Item: it.Clone(), Scope: ScopeGlobal}
		}
		for name, it := range project.Section(s) {
			entries[name] = Entry{Item: it.Clone(), Scope: ScopeProject}
		}
		mc.sections[s] = entries
	}

	for _, m := range []*manifest.Manifest{global, project} {
		if m == nil {
			continue
		}
		for id, t := range m.TakenOverPlugins {
			tc := *t
			mc.plugins[id] = &tc
		}
	}

	mc.conflicts = DetectConflicts(global, project)
	return mc
}

// DetectConflicts lists names present in both scopes with differing
// payloads, sorted by section order then name. It does not merge.
func DetectConflicts(global, project *manifest.Manifest) []Conflict {
	var conflicts []Conflict
	for _, s := range manifest.Sections {
		g := global.Section(s)
		for _, pit := range project.Items(s) {
			git, ok := g[pit.Name]
			if !ok || git.SamePayload(pit) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Name:         pit.Name,
				Section:      s,
				GlobalValue:  git.Clone(),
				ProjectValue: pit.Clone(),
			})
		}
	}
	return conflicts
}

// Conflicts returns the conflicts found while merging.
func (mc *MergedConfig) Conflicts() []Conflict {
	return mc.conflicts
}

// Items returns the merged items of a section sorted by name.
func (mc *MergedConfig) Items(s manifest.Section) []*manifest.Item {
	entries := mc.sections[s]
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]*manifest.Item, 0, len(names))
	for _, name := range names {
		items = append(items, entries[name].Item)
	}
	return items
}

// Section returns the merged entries of one section keyed by name.
func (mc *MergedConfig) Section(s manifest.Section) map[string]Entry {
	return mc.sections[s]
}

// Get returns the merged entry for name in section s.
func (mc *MergedConfig) Get(s manifest.Section, name string) (Entry, bool) {
	e, ok := mc.sections[s][name]
	return e, ok
}

// Lookup returns every section's entry for name, in section order.
func (mc *MergedConfig) Lookup(name string) []Entry {
	var out []Entry
	for _, s := range manifest.Sections {
		if e, ok := mc.sections[s][name]; ok {
			out = append(out, e)
		}
	}
	return out
}

// TakenOverPlugins returns the union of plugin takeovers from both scopes.
func (mc *MergedConfig) TakenOverPlugins() map[string]*manifest.PluginTakeover {
	return mc.plugins
}
