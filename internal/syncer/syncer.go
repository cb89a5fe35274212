package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/codec"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/linker"
	"github.com/mycelium-labs/mycelium/internal/logging"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/memoryfile"
	"github.com/mycelium-labs/mycelium/internal/merge"
	"github.com/mycelium-labs/mycelium/internal/platform"
)

// maxParallel bounds how many tool pipelines run at once.
const maxParallel = 4

// Options configures a Syncer.
type Options struct {
	// Home is the directory tool configs are resolved against.
	Home string
	// SkillsDir is the canonical skills directory used for skills that
	// declare no path.
	SkillsDir string
	// Env supplies values for ${NAME} references.
	Env map[string]string
	// Backup copies each config file to <file>.mycelium-backup before
	// it is first overwritten. An existing backup is kept, so it holds
	// the content from before mycelium touched the file until a restore
	// consumes it.
	Backup        bool
	RemoveOrphans bool
	Logger        *slog.Logger
}

// Syncer applies a merged manifest to tool configurations.
type Syncer struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Syncer.
func New(opts Options) *Syncer {
	return &Syncer{opts: opts, logger: logging.OrDefault(opts.Logger)}
}

// Result is the outcome of syncing one tool.
type Result struct {
	Tool       integrations.ToolID
	Success    bool
	ConfigPath string
	// BackupPaths lists every backup created during the sync.
	BackupPaths []string
	// Error is set when the tool could not be synced at all.
	Error error
	Links []linker.Report
	// Errors holds per-item failures that did not stop the pipeline.
	Errors []error
}

// SyncTool runs the pipeline for one tool.
func (s *Syncer) SyncTool(ctx context.Context, id integrations.ToolID, merged *merge.MergedConfig) Result {
	return s.syncTool(ctx, s.logger, id, merged)
}

func (s *Syncer) syncTool(ctx context.Context, logger *slog.Logger, id integrations.ToolID, merged *merge.MergedConfig) Result {
	res := Result{Tool: id}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	desc, err := integrations.Lookup(id)
	if err != nil {
		res.Error = err
		return res
	}
	tool := desc.Resolve(s.opts.Home)
	logger = logger.With("tool", id)

	if desc.MCP != nil {
		res.ConfigPath = tool.MCPPath
		backup, err := s.syncMCP(tool, merged)
		if backup != "" {
			res.BackupPaths = append(res.BackupPaths, backup)
		}
		if err != nil {
			res.Error = err
			logger.Error("mcp sync failed", "path", tool.MCPPath, "error", err)
			return res
		}
	}

	for _, section := range manifest.Sections {
		dir, ok := tool.Dirs[section]
		if !ok || section == manifest.SectionMemory || section == manifest.SectionMCPs {
			continue
		}
		declared, errs := s.declared(section, id, merged)
		res.Errors = append(res.Errors, errs...)
		if len(declared) == 0 && !s.opts.RemoveOrphans {
			continue
		}
		report := linker.SyncSkillsToTool(dir, declared, linker.Options{RemoveOrphans: s.opts.RemoveOrphans})
		for _, r := range report.Results {
			if r.Action == linker.ActionReplaced {
				logger.Warn("moved existing file aside", "path", r.Path, "backup", r.BackupPath)
			}
		}
		res.Links = append(res.Links, report)
		res.Errors = append(res.Errors, report.Errors()...)
	}

	if path, ok := tool.Dirs[manifest.SectionMemory]; ok {
		backup, errs := s.syncMemory(path, id, merged)
		if backup != "" {
			res.BackupPaths = append(res.BackupPaths, backup)
		}
		res.Errors = append(res.Errors, errs...)
	}

	for _, e := range res.Errors {
		logger.Warn("item sync failed", "error", e)
	}
	res.Success = res.Error == nil && len(res.Errors) == 0
	logger.Debug("tool synced", "success", res.Success, "links", len(res.Links))
	return res
}

// SyncAll runs SyncTool for every tool concurrently and returns results in
// the order of tools.
func (s *Syncer) SyncAll(ctx context.Context, tools []integrations.ToolID, merged *merge.MergedConfig) []Result {
	logger := s.logger.With("run", uuid.NewString())
	logger.Info("sync started", "tools", len(tools))

	results := make([]Result, len(tools))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, id := range tools {
		i, id := i, id
		g.Go(func() error {
			results[i] = s.syncTool(ctx, logger, id, merged)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	logger.Info("sync finished", "tools", len(tools), "failed", failed)
	return results
}

// syncMCP renders the server table into the tool's MCP config file.
func (s *Syncer) syncMCP(tool integrations.Resolved, merged *merge.MergedConfig) (string, error) {
	current, next, servers, err := s.renderMCP(tool, merged)
	if err != nil {
		return "", err
	}
	if current == nil && len(servers) == 0 {
		// Nothing declared and no file to clean up.
		return "", nil
	}
	return s.write(tool.MCPPath, current, next)
}

// renderMCP returns the current content (nil when absent), the content
// after injection and the servers that were injected.
func (s *Syncer) renderMCP(tool integrations.Resolved, merged *merge.MergedConfig) (current, next []byte, servers codec.Servers, err error) {
	c, err := codec.For(*tool.MCP)
	if err != nil {
		return nil, nil, nil, err
	}
	current, err = readIfExists(tool.MCPPath)
	if err != nil {
		return nil, nil, nil, err
	}
	servers = codec.Generate(merged.Items(manifest.SectionMCPs), tool.ID, s.opts.Env)
	next, err = c.Inject(current, servers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rendering %s: %w", tool.MCPPath, err)
	}
	return current, next, servers, nil
}

// declared builds the linker input for one section.
func (s *Syncer) declared(section manifest.Section, id integrations.ToolID, merged *merge.MergedConfig) ([]linker.Declared, []error) {
	var out []linker.Declared
	var errs []error
	for _, it := range merged.Items(section) {
		source := it.Path
		if source == "" && section == manifest.SectionSkills && s.opts.SkillsDir != "" {
			source = filepath.Join(s.opts.SkillsDir, it.Name)
		}
		enabled := codec.EffectivelyEnabled(it, id)
		if source == "" {
			if enabled {
				errs = append(errs, fmt.Errorf("%s %q has no path", section.Singular(), it.Name))
			}
			continue
		}
		out = append(out, linker.Declared{Name: it.Name, Source: source, Enabled: enabled})
	}
	return out, errs
}

// memoryEntries reads the content of every memory item visible to id.
func memoryEntries(id integrations.ToolID, merged *merge.MergedConfig) ([]memoryfile.Entry, []error) {
	var entries []memoryfile.Entry
	var errs []error
	for _, it := range merged.Items(manifest.SectionMemory) {
		if !codec.EffectivelyEnabled(it, id) {
			continue
		}
		if it.Path == "" {
			errs = append(errs, fmt.Errorf("memory %q has no path", it.Name))
			continue
		}
		data, err := os.ReadFile(it.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading memory %q: %w", it.Name, err))
			continue
		}
		entries = append(entries, memoryfile.Entry{Name: it.Name, Content: string(data)})
	}
	return entries, errs
}

func (s *Syncer) syncMemory(path string, id integrations.ToolID, merged *merge.MergedConfig) (string, []error) {
	entries, errs := memoryEntries(id, merged)
	current, err := readIfExists(path)
	if err != nil {
		return "", append(errs, err)
	}
	if current == nil && len(entries) == 0 {
		return "", errs
	}
	next := []byte(memoryfile.Inject(string(current), entries))
	backup, err := s.write(path, current, next)
	if err != nil {
		errs = append(errs, err)
	}
	return backup, errs
}

// write backs up path (when enabled, present and not backed up yet) and
// atomically replaces it. Unchanged content is not rewritten.
func (s *Syncer) write(path string, current, next []byte) (string, error) {
	if current != nil && bytes.Equal(current, next) {
		return "", nil
	}
	var backup string
	if s.opts.Backup && current != nil {
		copied, err := platform.BackupOnce(path, path+branding.BackupSuffix())
		if err != nil {
			return "", fmt.Errorf("backing up %s: %w", path, err)
		}
		if copied {
			backup = path + branding.BackupSuffix()
		}
	}
	if err := platform.WriteFileAtomic(path, next, 0644); err != nil {
		return backup, err
	}
	return backup, nil
}

func readIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
