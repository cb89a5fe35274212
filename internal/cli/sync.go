package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/config"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/linker"
	"github.com/mycelium-labs/mycelium/internal/syncer"
	"github.com/mycelium-labs/mycelium/internal/watch"
)

var (
	syncTools         []string
	syncDryRun        bool
	syncWatch         bool
	syncRemoveOrphans bool
	syncNoBackup      bool
)

func init() {
	syncCmd.Flags().StringSliceVarP(&syncTools, "tool", "t", nil, "Tool to sync (repeatable; default: configured or installed tools)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Show the changes without writing anything")
	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false, "Keep running and sync again whenever a manifest or the env file changes")
	syncCmd.Flags().BoolVar(&syncRemoveOrphans, "remove-orphans", false, "Remove symlinks in tool directories that no manifest item declares")
	syncCmd.Flags().BoolVar(&syncNoBackup, "no-backup", false, "Do not back up tool config files before rewriting them")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply the manifest to every tool",
	Long: `Merge the global and project manifests and write the result into each tool:
MCP servers into its config file, skills and other file-backed items as
symlinks into its directories, and memory items into its memory file.

  mycelium sync                      # every installed tool
  mycelium sync --tool codex         # one tool
  mycelium sync --dry-run            # print a diff instead of writing
  mycelium sync --watch              # re-sync on manifest changes`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	tools, err := ws.tools(syncTools)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tools) == 0 {
		fmt.Fprintln(out, "No supported tools detected. Use --tool to pick one.")
		return nil
	}

	s, err := ws.syncer(syncFlags{
		backup:        config.Backup() && !syncNoBackup,
		removeOrphans: config.RemoveOrphans() || syncRemoveOrphans,
	})
	if err != nil {
		return err
	}

	if syncDryRun {
		return printDryRun(cmd.Context(), out, s, ws, tools)
	}

	err = syncOnce(cmd.Context(), out, s, ws, tools)
	if !syncWatch {
		return err
	}

	paths := append(ws.manifestPaths(), config.EnvFile())
	fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)...\n", strings.Join(paths, ", "))
	return watch.Watch(cmd.Context(), paths, watch.DefaultDebounce, func(ctx context.Context, changed []string) {
		fmt.Fprintf(out, "\n[%s] %s changed, syncing...\n", time.Now().Format(time.TimeOnly), baseNames(changed))
		// The env file may have changed too, so the syncer is rebuilt.
		s, err := ws.syncer(syncFlags{
			backup:        config.Backup() && !syncNoBackup,
			removeOrphans: config.RemoveOrphans() || syncRemoveOrphans,
		})
		if err != nil {
			fmt.Fprintf(out, "  [FAIL] %v\n", err)
			return
		}
		_ = syncOnce(ctx, out, s, ws, tools)
	})
}

func syncOnce(ctx context.Context, out io.Writer, s *syncer.Syncer, ws *workspace, tools []integrations.ToolID) error {
	merged := ws.merged()
	for _, c := range merged.Conflicts() {
		fmt.Fprintf(out, "  [WARN] %s %q is defined in both scopes; the project value wins\n", c.Section.Singular(), c.Name)
	}

	results := s.SyncAll(ctx, tools, merged)
	failed := 0
	for _, r := range results {
		printSyncResult(out, r)
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("sync failed for %d of %d tool(s)", failed, len(results))
	}
	fmt.Fprintf(out, "Synced %d tool(s).\n", len(results))
	return nil
}

func printSyncResult(out io.Writer, r syncer.Result) {
	name := integrations.DisplayName(r.Tool)
	switch {
	case r.Error != nil:
		fmt.Fprintf(out, "  [FAIL] %s: %v\n", name, r.Error)
		return
	case r.Success:
		fmt.Fprintf(out, "  [ OK ] %s\n", name)
	default:
		fmt.Fprintf(out, "  [WARN] %s: %d item(s) failed\n", name, len(r.Errors))
	}

	if r.ConfigPath != "" {
		fmt.Fprintf(out, "         config: %s\n", r.ConfigPath)
	}
	for _, b := range r.BackupPaths {
		fmt.Fprintf(out, "         backup: %s\n", b)
	}
	for _, rep := range r.Links {
		summary := linkSummary(rep)
		if summary == "" {
			continue
		}
		fmt.Fprintf(out, "         %s: %s\n", filepath.Base(rep.Dir), summary)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "         error: %v\n", e)
	}
}

// linkSummary renders the non-zero action counts of a link report.
func linkSummary(rep linker.Report) string {
	var parts []string
	for _, a := range []linker.Action{
		linker.ActionCreated,
		linker.ActionUpdated,
		linker.ActionReplaced,
		linker.ActionRemoved,
		linker.ActionUnchanged,
		linker.ActionFailed,
	} {
		if n := rep.Count(a); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, a))
		}
	}
	return strings.Join(parts, ", ")
}

func printDryRun(ctx context.Context, out io.Writer, s *syncer.Syncer, ws *workspace, tools []integrations.ToolID) error {
	merged := ws.merged()
	changes := 0
	for _, id := range tools {
		res, err := s.DryRun(ctx, id, merged)
		if err != nil {
			fmt.Fprintf(out, "  [FAIL] %s: %v\n", integrations.DisplayName(id), err)
			continue
		}
		if res.Diff != "" {
			fmt.Fprint(out, res.Diff)
			changes++
		}
		if res.Memory != nil && res.Memory.Diff != "" {
			fmt.Fprint(out, res.Memory.Diff)
			changes++
		}
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  [WARN] %s: %v\n", integrations.DisplayName(id), e)
		}
	}
	if changes == 0 {
		fmt.Fprintln(out, "No file changes.")
	} else {
		fmt.Fprintf(out, "\n%d file(s) would change. Run '%s sync' to apply.\n", changes, branding.CLIName())
	}
	return nil
}

func baseNames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}
