// Package lifecycle implements the manifest mutations behind the add,
// enable, disable, remove and purge commands. Each operation reads the
// scope manifest once, validates everything, mutates in memory and saves
// once.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mycelium-labs/mycelium/internal/advisory"
	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/codec"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/linker"
	"github.com/mycelium-labs/mycelium/internal/logging"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/memoryfile"
	"github.com/mycelium-labs/mycelium/internal/platform"
)

var (
	// ErrExists is returned by Add when the item is already declared.
	ErrExists = errors.New("already exists, use --force to overwrite")
	// ErrMissingField is returned when an item lacks a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrNotTakenOver is returned when releasing an unknown plugin.
	ErrNotTakenOver = errors.New("plugin is not taken over")
)

var now = time.Now

// Options configures a Manager.
type Options struct {
	// ScopeDir holds the manifest being edited.
	ScopeDir string
	// Home is the user home that tool directories resolve against.
	Home string
	// SkillsDir is the canonical skills directory.
	SkillsDir string
	Logger    *slog.Logger
}

// Manager applies lifecycle operations to one scope.
type Manager struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Manager.
func New(opts Options) *Manager {
	return &Manager{opts: opts, logger: logging.OrDefault(opts.Logger)}
}

// AddOptions controls Add.
type AddOptions struct {
	Force bool
}

// Change describes one state transition.
type Change struct {
	Name    string
	Section manifest.Section
	From    manifest.State
	To      manifest.State
}

// Outcome is what a removal did.
type Outcome struct {
	Changes []Change
	// Released lists plugins whose takeover ended.
	Released []string
	// RemovedPaths lists files, directories and links deleted by Purge.
	RemovedPaths []string
	// EditedPaths lists tool config and memory files Purge removed the
	// item's entry from.
	EditedPaths []string
	// Errors holds filesystem cleanup failures after the manifest was saved.
	Errors   []error
	Warnings []advisory.Failure
}

// update runs fn against the scope manifest and saves the result. When
// create is set a missing manifest starts out empty.
func (mgr *Manager) update(create bool, fn func(m *manifest.Manifest) error) error {
	m, err := manifest.Read(mgr.opts.ScopeDir)
	if err != nil {
		if !create || !errors.Is(err, manifest.ErrNotFound) {
			return err
		}
		m = manifest.New()
	}
	if err := fn(m); err != nil {
		return err
	}
	return manifest.Save(mgr.opts.ScopeDir, m)
}

// Add declares item in section.
func (mgr *Manager) Add(section manifest.Section, item *manifest.Item, opts AddOptions) error {
	if err := mgr.validate(section, item); err != nil {
		return err
	}
	return mgr.update(true, func(m *manifest.Manifest) error {
		if existing := m.Get(section, item.Name); existing != nil &&
			existing.EffectiveState() != manifest.StateDeleted && !opts.Force {
			return fmt.Errorf("%s %q %w", section.Singular(), item.Name, ErrExists)
		}
		it := item.Clone()
		it.State = ""
		if it.AddedAt.IsZero() {
			it.AddedAt = now().UTC().Truncate(time.Second)
		}
		m.Set(section, it.Name, it)
		mgr.logger.Info("item added", "name", it.Name, "section", section, "scope", mgr.opts.ScopeDir)
		return nil
	})
}

func (mgr *Manager) validate(section manifest.Section, item *manifest.Item) error {
	if item == nil {
		return fmt.Errorf("%w: item", ErrMissingField)
	}
	if err := manifest.ValidateName(item.Name); err != nil {
		return err
	}
	if section == manifest.SectionMCPs && strings.TrimSpace(item.Command) == "" {
		return fmt.Errorf("mcp %q: %w: command", item.Name, ErrMissingField)
	}
	if section.FileBacked() && item.Path == "" && !mgr.hasCanonicalSkill(section, item.Name) {
		return fmt.Errorf("%s %q: %w: path", section.Singular(), item.Name, ErrMissingField)
	}
	for _, t := range append(append([]string{}, item.Tools...), item.ExcludeTools...) {
		if _, ok := integrations.ParseToolID(t); !ok {
			return fmt.Errorf("%s %q: %w: %q", section.Singular(), item.Name, integrations.ErrUnsupportedTool, t)
		}
	}
	return nil
}

// hasCanonicalSkill reports whether a skill without a path can fall back to
// the canonical skills directory.
func (mgr *Manager) hasCanonicalSkill(section manifest.Section, name string) bool {
	if section != manifest.SectionSkills || mgr.opts.SkillsDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(mgr.opts.SkillsDir, name))
	return err == nil && info.IsDir()
}

// Enable marks an item enabled. A deleted item is restored.
func (mgr *Manager) Enable(name string, section manifest.Section) (Change, error) {
	return mgr.setState(name, section, manifest.StateEnabled)
}

// Disable marks an item disabled.
func (mgr *Manager) Disable(name string, section manifest.Section) (Change, error) {
	return mgr.setState(name, section, manifest.StateDisabled)
}

func (mgr *Manager) setState(name string, section manifest.Section, state manifest.State) (Change, error) {
	var change Change
	err := mgr.update(false, func(m *manifest.Manifest) error {
		match, err := manifest.Resolve(m, name, section)
		if err != nil {
			return err
		}
		change = Change{Name: name, Section: match.Section, From: match.Item.EffectiveState(), To: state}
		match.Item.State = state
		return nil
	})
	if err != nil {
		return Change{}, err
	}
	mgr.logger.Info("item state changed", "name", name, "section", change.Section, "from", change.From, "to", change.To)
	return change, nil
}

// Remove tombstones an item. When it was the last live item of a taken
// over plugin, the takeover is released.
func (mgr *Manager) Remove(ctx context.Context, name string, section manifest.Section) (Outcome, error) {
	var out Outcome
	err := mgr.update(false, func(m *manifest.Manifest) error {
		match, err := manifest.Resolve(m, name, section)
		if err != nil {
			return err
		}
		out.Changes = append(out.Changes, tombstone(match.Section, match.Item))
		out.Released = releaseOrphaned(m, pluginsOf(match.Item))
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = mgr.reenable(ctx, out.Released)
	return out, nil
}

// RemoveBySource tombstones every live item whose source equals source.
func (mgr *Manager) RemoveBySource(ctx context.Context, source string) (Outcome, error) {
	var out Outcome
	err := mgr.update(false, func(m *manifest.Manifest) error {
		var plugins []string
		for _, section := range manifest.Sections {
			for _, it := range m.Items(section) {
				if it.Source != source || it.EffectiveState() == manifest.StateDeleted {
					continue
				}
				out.Changes = append(out.Changes, tombstone(section, it))
				plugins = append(plugins, pluginsOf(it)...)
			}
		}
		if len(out.Changes) == 0 {
			return fmt.Errorf("source %q: %w", source, manifest.ErrItemNotFound)
		}
		out.Released = releaseOrphaned(m, plugins)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = mgr.reenable(ctx, out.Released)
	return out, nil
}

// Purge deletes an item from the manifest together with its canonical
// skill directory and every tool-side link or entry for it.
func (mgr *Manager) Purge(ctx context.Context, name string, section manifest.Section) (Outcome, error) {
	var out Outcome
	var purged manifest.Match
	err := mgr.update(false, func(m *manifest.Manifest) error {
		match, err := manifest.Resolve(m, name, section)
		if err != nil {
			return err
		}
		purged = match
		out.Changes = append(out.Changes, Change{Name: name, Section: match.Section, From: match.Item.EffectiveState()})
		m.Delete(match.Section, name)
		out.Released = releaseOrphaned(m, pluginsOf(match.Item))
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	switch purged.Section {
	case manifest.SectionMCPs:
		mgr.removeServerEntries(purged.Item.Name, &out)
	case manifest.SectionMemory:
		mgr.removeMemoryEntries(purged.Item.Name, &out)
	default:
		mgr.removeLinks(purged, &out)
	}
	mgr.removeCanonical(purged, &out)
	for _, e := range out.Errors {
		mgr.logger.Warn("purge cleanup failed", "name", name, "error", e)
	}
	out.Warnings = mgr.reenable(ctx, out.Released)
	return out, nil
}

func (mgr *Manager) removeLinks(match manifest.Match, out *Outcome) {
	if mgr.opts.Home == "" {
		return
	}
	names := []string{match.Item.Name}
	if match.Item.Path != "" {
		if ln := linker.LinkName(match.Item.Name, match.Item.Path); ln != match.Item.Name {
			names = append(names, ln)
		}
	}
	for _, id := range integrations.AllTools() {
		desc, _ := integrations.Lookup(id)
		if !desc.Supports(match.Section) {
			continue
		}
		dir := desc.Resolve(mgr.opts.Home).Dirs[match.Section]
		for _, n := range names {
			path := filepath.Join(dir, n)
			removed, err := linker.RemoveSkillSymlink(path)
			if err != nil {
				out.Errors = append(out.Errors, err)
				continue
			}
			if removed {
				out.RemovedPaths = append(out.RemovedPaths, path)
			}
		}
	}
}

// removeServerEntries drops the named server from every tool's MCP config.
func (mgr *Manager) removeServerEntries(name string, out *Outcome) {
	if mgr.opts.Home == "" {
		return
	}
	for _, id := range integrations.AllTools() {
		desc, _ := integrations.Lookup(id)
		if desc.MCP == nil {
			continue
		}
		c, err := codec.For(*desc.MCP)
		if err != nil {
			out.Errors = append(out.Errors, err)
			continue
		}
		path := desc.Resolve(mgr.opts.Home).MCPPath
		mgr.rewrite(path, out, func(data []byte) ([]byte, bool, error) {
			return c.Remove(data, name)
		})
	}
}

// removeMemoryEntries drops the named item from every tool's memory block.
func (mgr *Manager) removeMemoryEntries(name string, out *Outcome) {
	if mgr.opts.Home == "" {
		return
	}
	for _, id := range integrations.AllTools() {
		desc, _ := integrations.Lookup(id)
		path, ok := desc.Resolve(mgr.opts.Home).Dirs[manifest.SectionMemory]
		if !ok {
			continue
		}
		mgr.rewrite(path, out, func(data []byte) ([]byte, bool, error) {
			next, removed := memoryfile.Remove(string(data), name)
			return []byte(next), removed, nil
		})
	}
}

// rewrite applies edit to an existing file, backing it up first when no
// backup exists yet. Missing files are skipped.
func (mgr *Manager) rewrite(path string, out *Outcome, edit func([]byte) ([]byte, bool, error)) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		out.Errors = append(out.Errors, fmt.Errorf("reading %s: %w", path, err))
		return
	}
	next, changed, err := edit(data)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Errorf("editing %s: %w", path, err))
		return
	}
	if !changed {
		return
	}
	if _, err := platform.BackupOnce(path, path+branding.BackupSuffix()); err != nil {
		out.Errors = append(out.Errors, fmt.Errorf("backing up %s: %w", path, err))
		return
	}
	if err := platform.WriteFileAtomic(path, next, 0644); err != nil {
		out.Errors = append(out.Errors, err)
		return
	}
	out.EditedPaths = append(out.EditedPaths, path)
}

// removeCanonical deletes a skill's content when it lives under the
// canonical skills directory.
func (mgr *Manager) removeCanonical(match manifest.Match, out *Outcome) {
	if match.Section != manifest.SectionSkills || mgr.opts.SkillsDir == "" {
		return
	}
	path := match.Item.Path
	if path == "" {
		path = filepath.Join(mgr.opts.SkillsDir, match.Item.Name)
	}
	rel, err := filepath.Rel(mgr.opts.SkillsDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}
	if _, err := os.Lstat(path); err != nil {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		out.Errors = append(out.Errors, fmt.Errorf("removing %s: %w", path, err))
		return
	}
	out.RemovedPaths = append(out.RemovedPaths, path)
}

func tombstone(section manifest.Section, it *manifest.Item) Change {
	c := Change{Name: it.Name, Section: section, From: it.EffectiveState(), To: manifest.StateDeleted}
	it.State = manifest.StateDeleted
	return c
}

func pluginsOf(it *manifest.Item) []string {
	if it.PluginOrigin == nil || it.PluginOrigin.PluginID == "" {
		return nil
	}
	return []string{it.PluginOrigin.PluginID}
}
