package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/manifest"
)

func init() {
	rootCmd.AddCommand(conflictsCmd)
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show items defined differently in the global and project manifests",
	Long: `List every name declared in both scopes with a different definition.
The project definition is the one that is synced.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ws.project == "" {
			fmt.Fprintln(out, "Not inside a project; there is nothing to conflict with.")
			return nil
		}

		conflicts := ws.merged().Conflicts()
		if len(conflicts) == 0 {
			fmt.Fprintln(out, "No conflicts.")
			return nil
		}
		for _, c := range conflicts {
			fmt.Fprintf(out, "%s %s:\n", c.Section.Singular(), c.Name)
			describeItem(out, "global ", c.GlobalValue)
			describeItem(out, "project", c.ProjectValue)
		}
		fmt.Fprintf(out, "\n%d conflict(s); project values win.\n", len(conflicts))
		return nil
	},
}

func describeItem(w io.Writer, label string, it *manifest.Item) {
	var parts []string
	parts = append(parts, "state="+string(it.EffectiveState()))
	if it.Command != "" {
		parts = append(parts, "command="+strings.Join(append([]string{it.Command}, it.Args...), " "))
	}
	if it.Path != "" {
		parts = append(parts, "path="+it.Path)
	}
	if len(it.Env) > 0 {
		parts = append(parts, fmt.Sprintf("env=%d var(s)", len(it.Env)))
	}
	if len(it.Tools) > 0 {
		parts = append(parts, "tools="+strings.Join(it.Tools, ","))
	}
	if len(it.ExcludeTools) > 0 {
		parts = append(parts, "exclude="+strings.Join(it.ExcludeTools, ","))
	}
	fmt.Fprintf(w, "  %s  %s\n", label, strings.Join(parts, " "))
}
