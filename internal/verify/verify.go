package verify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mycelium-labs/mycelium/internal/codec"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/linker"
	"github.com/mycelium-labs/mycelium/internal/logging"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/memoryfile"
	"github.com/mycelium-labs/mycelium/internal/merge"
)

// fileExtensions are tried when looking for a file-backed item.
var fileExtensions = []string{"", ".md", ".yaml", ".yml"}

// Options narrows a verification to one tool and/or one item type.
type Options struct {
	Tool integrations.ToolID
	Type manifest.Section
}

// ToolState is what one tool's files say about an item.
type ToolState struct {
	Tool        integrations.ToolID
	DisplayName string
	Present     bool
	// Location is the file or link where the item was found, or where it
	// was looked for.
	Location string
	// Unparseable is set when the tool config could not be decoded; the
	// presence answer then comes from header matching or is false.
	Unparseable error
	Drifted     bool
}

// Result is the audit outcome for one item.
type Result struct {
	Name    string
	Section manifest.Section
	State   manifest.State
	Tools   []ToolState
	// Drifted lists display names of tools that still have an item the
	// manifest marks disabled or deleted.
	Drifted []string
}

// HasDrift reports whether any tool drifted.
func (r Result) HasDrift() bool {
	return len(r.Drifted) > 0
}

// Config configures a Verifier.
type Config struct {
	// Home is the directory tool configs are resolved against.
	Home   string
	Merged *merge.MergedConfig
	Logger *slog.Logger
}

// Verifier reads tool configurations and compares them with the merged
// manifest.
type Verifier struct {
	home   string
	merged *merge.MergedConfig
	logger *slog.Logger
	cache  *configCache
}

// New returns a Verifier.
func New(cfg Config) *Verifier {
	merged := cfg.Merged
	if merged == nil {
		merged = merge.MergeConfigs(nil, nil)
	}
	return &Verifier{
		home:   cfg.Home,
		merged: merged,
		logger: logging.OrDefault(cfg.Logger),
		cache:  newConfigCache(),
	}
}

// VerifyItemState checks one item across tools. Without Options.Tool every
// known tool that supports the item's type is checked.
func (v *Verifier) VerifyItemState(ctx context.Context, name string, opts Options) (Result, error) {
	entry, section, err := v.resolve(name, opts.Type)
	if err != nil {
		return Result{}, err
	}

	tools := integrations.AllTools()
	if opts.Tool != "" {
		if _, err := integrations.Lookup(opts.Tool); err != nil {
			return Result{}, err
		}
		tools = []integrations.ToolID{opts.Tool}
	}

	item := entry.Item
	res := Result{Name: name, Section: section, State: item.EffectiveState()}
	for _, id := range tools {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		desc, _ := integrations.Lookup(id)
		if !desc.Supports(section) {
			continue
		}
		st := v.check(desc.Resolve(v.home), section, item)
		if !item.Enabled() && st.Present {
			st.Drifted = true
			res.Drifted = append(res.Drifted, st.DisplayName)
		}
		res.Tools = append(res.Tools, st)
	}

	if res.HasDrift() {
		v.logger.Warn("drift detected", "item", name, "section", section, "state", res.State, "tools", res.Drifted)
	}
	return res, nil
}

// VerifyAll checks every disabled or deleted item and returns the results
// sorted by section and name.
func (v *Verifier) VerifyAll(ctx context.Context, opts Options) ([]Result, error) {
	var results []Result
	for _, section := range manifest.Sections {
		if opts.Type != "" && opts.Type != section {
			continue
		}
		for _, it := range v.merged.Items(section) {
			if it.Enabled() {
				continue
			}
			res, err := v.VerifyItemState(ctx, it.Name, Options{Tool: opts.Tool, Type: section})
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func (v *Verifier) resolve(name string, section manifest.Section) (merge.Entry, manifest.Section, error) {
	if section != "" {
		e, ok := v.merged.Get(section, name)
		if !ok {
			return merge.Entry{}, "", fmt.Errorf("%s %q: %w", section.Singular(), name, manifest.ErrItemNotFound)
		}
		return e, section, nil
	}

	var found []manifest.Section
	for _, s := range manifest.Sections {
		if _, ok := v.merged.Get(s, name); ok {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return merge.Entry{}, "", fmt.Errorf("%q: %w", name, manifest.ErrItemNotFound)
	case 1:
		e, _ := v.merged.Get(found[0], name)
		return e, found[0], nil
	default:
		return merge.Entry{}, "", fmt.Errorf("%q %w", name, manifest.ErrAmbiguous)
	}
}

func (v *Verifier) check(tool integrations.Resolved, section manifest.Section, item *manifest.Item) ToolState {
	st := ToolState{Tool: tool.ID, DisplayName: tool.DisplayName}
	switch section {
	case manifest.SectionMCPs:
		v.checkMCP(tool, item.Name, &st)
	case manifest.SectionMemory:
		v.checkMemory(tool.Dirs[section], item.Name, &st)
	default:
		checkLinked(tool.Dirs[section], item, &st)
	}
	return st
}

func (v *Verifier) checkMCP(tool integrations.Resolved, name string, st *ToolState) {
	st.Location = tool.MCPPath
	p, err := v.cache.load(tool.MCPPath, tool.MCP.Format)
	if err != nil {
		st.Unparseable = err
		return
	}
	if p == nil {
		return
	}
	if p.err != nil {
		st.Unparseable = p.err
		v.logger.Debug("unparseable tool config", "path", tool.MCPPath, "error", p.err)
	} else if hasServer(p.doc, codec.ManagedPath(*tool.MCP), name) {
		st.Present = true
		return
	}
	if tool.MCP.Format == integrations.FormatTOML {
		st.Present = tomlHeaderMentions(p.raw, tool.MCP.Key, name)
	}
}

func (v *Verifier) checkMemory(path, name string, st *ToolState) {
	st.Location = path
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	st.Present = memoryfile.Contains(string(data), name)
}

// checkLinked looks for the item under the tool directory by name, by its
// link name and with the common extensions.
func checkLinked(dir string, item *manifest.Item, st *ToolState) {
	names := []string{}
	if item.Path != "" {
		names = append(names, linker.LinkName(item.Name, item.Path))
	}
	for _, ext := range fileExtensions {
		names = append(names, item.Name+ext)
	}

	st.Location = filepath.Join(dir, item.Name)
	for _, n := range names {
		path := filepath.Join(dir, n)
		if _, err := os.Lstat(path); err == nil {
			st.Present = true
			st.Location = path
			return
		}
	}
}
