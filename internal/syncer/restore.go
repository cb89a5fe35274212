package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/platform"
)

// RestoreResult reports one restored (or failed) backup.
type RestoreResult struct {
	Tool       integrations.ToolID
	Path       string
	BackupPath string
	Error      error
}

// RestoreBackups finds *.mycelium-backup files next to each tool's config
// and memory files, copies them back over the live file and deletes the
// backup.
func (s *Syncer) RestoreBackups(ctx context.Context, tools []integrations.ToolID) []RestoreResult {
	pattern := glob.MustCompile("*" + branding.BackupSuffix())

	var results []RestoreResult
	seen := make(map[string]bool)
	for _, id := range tools {
		desc, err := integrations.Lookup(id)
		if err != nil {
			results = append(results, RestoreResult{Tool: id, Error: err})
			continue
		}
		for _, dir := range scanDirs(desc.Resolve(s.opts.Home)) {
			if ctx.Err() != nil {
				return results
			}
			for _, backup := range findBackups(dir, pattern) {
				if seen[backup] {
					continue
				}
				seen[backup] = true
				results = append(results, s.restore(id, backup))
			}
		}
	}
	return results
}

func (s *Syncer) restore(id integrations.ToolID, backup string) RestoreResult {
	live := strings.TrimSuffix(backup, branding.BackupSuffix())
	res := RestoreResult{Tool: id, Path: live, BackupPath: backup}

	if err := platform.CopyFile(backup, live); err != nil {
		res.Error = fmt.Errorf("restoring %s: %w", live, err)
		return res
	}
	if err := os.Remove(backup); err != nil {
		res.Error = fmt.Errorf("removing backup %s: %w", backup, err)
		return res
	}
	s.logger.Info("restored backup", "tool", id, "path", live)
	return res
}

// scanDirs returns the directories holding files mycelium writes for a
// tool.
func scanDirs(tool integrations.Resolved) []string {
	var dirs []string
	if tool.MCPPath != "" {
		dirs = append(dirs, filepath.Dir(tool.MCPPath))
	}
	if p, ok := tool.Dirs[manifest.SectionMemory]; ok {
		dirs = append(dirs, filepath.Dir(p))
	}
	return dirs
}

func findBackups(dir string, pattern glob.Glob) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && pattern.Match(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}
