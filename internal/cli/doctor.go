package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/platform"
	"github.com/mycelium-labs/mycelium/internal/userdata"
)

var (
	doctorFix     bool
	checkManifest string
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Repair missing directories and file permissions")
	doctorCmd.Flags().StringVar(&checkManifest, "check-manifest", "", "Validate only the manifest file at the given path")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the Mycelium installation",
	Long:  `Run diagnostic checks on the home directory, the manifests and the installed tools.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if checkManifest != "" {
			return runManifestCheck(out, checkManifest)
		}

		if err := userdata.CheckHome(out, doctorFix); err != nil {
			return err
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		var failed error
		for _, path := range ws.manifestPaths() {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := runManifestCheck(out, path); err != nil {
				failed = err
			}
		}
		runToolsCheck(out, ws.userHome)
		return failed
	},
}

// runToolsCheck lists detected tools and any dangling symlinks in their
// item directories.
func runToolsCheck(out io.Writer, home string) {
	fmt.Fprintln(out, "Tools check:")
	installed := integrations.Installed(home)
	if len(installed) == 0 {
		fmt.Fprintf(out, "  [WARN] no supported tools found under %s\n", home)
		return
	}
	for _, id := range installed {
		desc, err := integrations.Lookup(id)
		if err != nil {
			continue
		}
		tool := desc.Resolve(home)
		dangling := 0
		for _, section := range manifest.Sections {
			dir, ok := tool.Dirs[section]
			if !ok || section == manifest.SectionMemory {
				continue
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				path := filepath.Join(dir, e.Name())
				if platform.IsSymlink(path) && !platform.TargetExists(path) {
					target, _ := platform.ReadSymlinkTarget(path)
					fmt.Fprintf(out, "  [WARN] %s -> %s (target does not exist)\n", path, target)
					dangling++
				}
			}
		}
		if dangling == 0 {
			fmt.Fprintf(out, "  [ OK ] %s detected\n", integrations.DisplayName(id))
		}
	}
}

func runManifestCheck(out io.Writer, path string) error {
	fmt.Fprintf(out, "Manifest validation: %s\n", path)

	result, err := manifest.ValidateFile(path)
	if err != nil {
		fmt.Fprintf(out, "  [FAIL] %v\n", err)
		return fmt.Errorf("manifest validation failed: %w", err)
	}
	if !result.Valid {
		fmt.Fprintf(out, "  [FAIL] %d validation issue(s):\n", len(result.Issues))
		for _, issue := range result.Issues {
			fmt.Fprintf(out, "    - %s\n", issue)
		}
		return fmt.Errorf("manifest %s has %d validation issue(s)", path, len(result.Issues))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := manifest.Parse(data, path)
	if err != nil {
		return err
	}
	count := 0
	for _, s := range manifest.Sections {
		count += len(m.Section(s))
	}
	fmt.Fprintf(out, "  [ OK ] Valid manifest v%s with %d item(s)\n", m.Version, count)
	return nil
}
