package syncer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/memoryfile"
	"github.com/mycelium-labs/mycelium/internal/merge"
)

// FileChange is the planned rewrite of one file.
type FileChange struct {
	Path           string
	CurrentContent string
	NewContent     string
	Diff           string
}

// Changed reports whether the file would be rewritten.
func (c FileChange) Changed() bool {
	return c.CurrentContent != c.NewContent
}

// DryRunResult describes what SyncTool would write, without writing.
type DryRunResult struct {
	Tool integrations.ToolID
	// ConfigPath, CurrentContent, NewContent and Diff describe the MCP
	// config file.
	ConfigPath     string
	CurrentContent string
	NewContent     string
	Diff           string
	// Memory is set when the tool has a memory file.
	Memory *FileChange
	// Errors holds per-item failures; the planned content leaves those
	// items out, as a real sync would.
	Errors []error
}

// DryRun computes the MCP config (and memory file) a sync would produce
// for one tool. The filesystem is only read.
func (s *Syncer) DryRun(ctx context.Context, id integrations.ToolID, merged *merge.MergedConfig) (DryRunResult, error) {
	res := DryRunResult{Tool: id}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	desc, err := integrations.Lookup(id)
	if err != nil {
		return res, err
	}
	tool := desc.Resolve(s.opts.Home)

	if desc.MCP != nil {
		current, next, _, err := s.renderMCP(tool, merged)
		if err != nil {
			return res, err
		}
		res.ConfigPath = tool.MCPPath
		res.CurrentContent = string(current)
		res.NewContent = string(next)
		res.Diff, err = unifiedDiff(tool.MCPPath, current, next)
		if err != nil {
			return res, err
		}
	}

	if path, ok := tool.Dirs[manifest.SectionMemory]; ok {
		entries, errs := memoryEntries(id, merged)
		res.Errors = append(res.Errors, errs...)
		current, err := readIfExists(path)
		if err != nil {
			return res, err
		}
		if current != nil || len(entries) > 0 {
			next := []byte(memoryfile.Inject(string(current), entries))
			diff, err := unifiedDiff(path, current, next)
			if err != nil {
				return res, err
			}
			res.Memory = &FileChange{Path: path, CurrentContent: string(current), NewContent: string(next), Diff: diff}
		}
	}
	return res, nil
}

// unifiedDiff returns "" when the contents are equal.
func unifiedDiff(path string, current, next []byte) (string, error) {
	if bytes.Equal(current, next) {
		return "", nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(next)),
		FromFile: path,
		ToFile:   path + " (after sync)",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("diffing %s: %w", path, err)
	}
	return diff, nil
}
