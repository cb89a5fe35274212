package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/mycelium-labs/mycelium/internal/advisory"
	"github.com/mycelium-labs/mycelium/internal/codec"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/platform"
)

// settingsPluginsKey is the Claude Code settings object that maps plugin
// ids to their enabled flag.
const settingsPluginsKey = "enabledPlugins"

// TakeOverPlugin imports a plugin's items into the manifest and disables
// the plugin in Claude Code so the two do not both provide them. Every
// item must carry its section.
func (mgr *Manager) TakeOverPlugin(ctx context.Context, pluginID, version string, items []*manifest.Item) (Outcome, error) {
	if pluginID == "" {
		return Outcome{}, fmt.Errorf("%w: plugin id", ErrMissingField)
	}
	for _, it := range items {
		if it == nil || it.Section == "" {
			return Outcome{}, fmt.Errorf("plugin %s: %w: item type", pluginID, ErrMissingField)
		}
		if err := mgr.validate(it.Section, it); err != nil {
			return Outcome{}, fmt.Errorf("plugin %s: %w", pluginID, err)
		}
	}

	var out Outcome
	err := mgr.update(true, func(m *manifest.Manifest) error {
		for _, it := range items {
			existing := m.Get(it.Section, it.Name)
			if existing != nil && existing.EffectiveState() != manifest.StateDeleted && !ownedBy(existing, pluginID) {
				return fmt.Errorf("%s %q %w", it.Section.Singular(), it.Name, ErrExists)
			}
		}
		stamp := now().UTC().Truncate(time.Second)
		for _, it := range items {
			c := it.Clone()
			c.State = ""
			c.PluginOrigin = &manifest.PluginOrigin{PluginID: pluginID}
			if c.AddedAt.IsZero() {
				c.AddedAt = stamp
			}
			m.Set(it.Section, c.Name, c)
			out.Changes = append(out.Changes, Change{Name: c.Name, Section: it.Section, To: manifest.StateEnabled})
		}
		if m.TakenOverPlugins == nil {
			m.TakenOverPlugins = make(map[string]*manifest.PluginTakeover)
		}
		m.TakenOverPlugins[pluginID] = &manifest.PluginTakeover{
			TakenOverAt: stamp,
			Version:     version,
			Tools:       []string{string(integrations.ClaudeCode)},
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	mgr.logger.Info("plugin taken over", "plugin", pluginID, "version", version, "items", len(items))
	out.Warnings = advisory.Run(ctx, mgr.logger, mgr.pluginStep(pluginID, false))
	return out, nil
}

// ReleasePlugin ends a takeover: the plugin's live items are tombstoned
// and the plugin is re-enabled in Claude Code.
func (mgr *Manager) ReleasePlugin(ctx context.Context, pluginID string) (Outcome, error) {
	var out Outcome
	err := mgr.update(false, func(m *manifest.Manifest) error {
		if _, ok := m.TakenOverPlugins[pluginID]; !ok {
			return fmt.Errorf("%q: %w", pluginID, ErrNotTakenOver)
		}
		for _, section := range manifest.Sections {
			for _, it := range m.Items(section) {
				if ownedBy(it, pluginID) && it.EffectiveState() != manifest.StateDeleted {
					out.Changes = append(out.Changes, tombstone(section, it))
				}
			}
		}
		delete(m.TakenOverPlugins, pluginID)
		out.Released = []string{pluginID}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = mgr.reenable(ctx, out.Released)
	return out, nil
}

func ownedBy(it *manifest.Item, pluginID string) bool {
	return it.PluginOrigin != nil && it.PluginOrigin.PluginID == pluginID
}

// releaseOrphaned drops the takeover record of every plugin in candidates
// that has no live item left and returns the released ids.
func releaseOrphaned(m *manifest.Manifest, candidates []string) []string {
	var released []string
	for _, id := range candidates {
		if _, ok := m.TakenOverPlugins[id]; !ok || slices.Contains(released, id) {
			continue
		}
		if hasLiveItems(m, id) {
			continue
		}
		delete(m.TakenOverPlugins, id)
		released = append(released, id)
	}
	return released
}

func hasLiveItems(m *manifest.Manifest, pluginID string) bool {
	for _, section := range manifest.Sections {
		for _, it := range m.Section(section) {
			if ownedBy(it, pluginID) && it.EffectiveState() != manifest.StateDeleted {
				return true
			}
		}
	}
	return false
}

func (mgr *Manager) reenable(ctx context.Context, plugins []string) []advisory.Failure {
	if len(plugins) == 0 {
		return nil
	}
	steps := make([]advisory.Step, 0, len(plugins))
	for _, id := range plugins {
		mgr.logger.Info("plugin takeover released", "plugin", id)
		steps = append(steps, mgr.pluginStep(id, true))
	}
	return advisory.Run(ctx, mgr.logger, steps...)
}

func (mgr *Manager) pluginStep(pluginID string, enabled bool) advisory.Step {
	verb := "disable"
	if enabled {
		verb = "enable"
	}
	return advisory.Step{
		Name: fmt.Sprintf("%s plugin %s in Claude Code settings", verb, pluginID),
		Run: func(context.Context) error {
			return mgr.setPluginEnabled(pluginID, enabled)
		},
	}
}

// setPluginEnabled flips the plugin's flag in Claude Code settings. A
// missing settings file means Claude Code has no plugins to toggle; one
// that does not parse is left untouched.
func (mgr *Manager) setPluginEnabled(pluginID string, enabled bool) error {
	if mgr.opts.Home == "" {
		return nil
	}
	desc, err := integrations.Lookup(integrations.ClaudeCode)
	if err != nil {
		return err
	}
	path := desc.Resolve(mgr.opts.Home).SettingsPath
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	next, err := codec.UpdateValue(data, []string{settingsPluginsKey, pluginID}, enabled)
	if err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return platform.WriteFileAtomic(path, next, 0644)
}
