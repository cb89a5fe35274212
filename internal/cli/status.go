package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/codec"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/linker"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/merge"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show detected tools and the state of their links",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		merged := ws.merged()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Global manifest:  %s\n", manifest.Path(ws.globalScope()))
		if ws.project != "" {
			fmt.Fprintf(out, "Project manifest: %s\n", manifest.Path(ws.projectScope()))
		}
		fmt.Fprintln(out)

		for _, id := range integrations.AllTools() {
			desc, _ := integrations.Lookup(id)
			if !desc.IsInstalled(ws.userHome) {
				fmt.Fprintf(out, "  [--] %-12s not installed\n", desc.DisplayName+":")
				continue
			}
			tool := desc.Resolve(ws.userHome)
			fmt.Fprintf(out, "  [OK] %-12s installed\n", desc.DisplayName+":")

			if tool.MCPPath != "" {
				state := "missing"
				if _, err := os.Stat(tool.MCPPath); err == nil {
					state = "present"
				}
				servers := len(codec.Generate(merged.Items(manifest.SectionMCPs), id, nil))
				fmt.Fprintf(out, "       MCP config: %s (%s, %d server(s) declared)\n", tool.MCPPath, state, servers)
			}
			for _, section := range manifest.Sections {
				dir, ok := tool.Dirs[section]
				if !ok || section == manifest.SectionMemory {
					continue
				}
				names := linkNames(merged, section, id, ws.skillsDir)
				if len(names) == 0 {
					continue
				}
				valid := 0
				for _, rec := range linker.ListSymlinks(dir, names) {
					if rec.Valid {
						valid++
					}
				}
				fmt.Fprintf(out, "       %s: %d/%d links valid\n", section, valid, len(names))
			}
		}
		return nil
	},
}

// linkNames returns the entry names the tool directory should contain for
// the section's enabled items.
func linkNames(merged *merge.MergedConfig, section manifest.Section, id integrations.ToolID, skillsDir string) []string {
	var names []string
	for _, it := range merged.Items(section) {
		if !codec.EffectivelyEnabled(it, id) {
			continue
		}
		source := it.Path
		if source == "" && section == manifest.SectionSkills {
			source = filepath.Join(skillsDir, it.Name)
		}
		if source == "" {
			continue
		}
		names = append(names, linker.LinkName(it.Name, source))
	}
	return names
}
