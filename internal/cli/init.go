package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/userdata"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Mycelium home or a project manifest",
	Long: `Without flags, creates ~/.mycelium with an empty global manifest, the
canonical skills directory and an env file.

With --project <dir>, creates <dir>/.mycelium/manifest.yaml instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if projectFlag != "" {
			dir, err := filepath.Abs(projectFlag)
			if err != nil {
				return fmt.Errorf("resolving project directory: %w", err)
			}
			fmt.Fprintf(out, "Initializing project manifest in %s\n", dir)
			if err := userdata.InitProject(out, dir); err != nil {
				return fmt.Errorf("initializing project: %w", err)
			}
			fmt.Fprintf(out, "\nUse '%s add <type> <name>' to declare project items.\n", branding.CLIName())
			return nil
		}

		fmt.Fprintf(out, "Initializing %s\n", userdata.GetHome())
		if err := userdata.InitGlobal(out); err != nil {
			return fmt.Errorf("initializing home: %w", err)
		}
		fmt.Fprintf(out, "\nDone. Declare items with '%s add' and apply them with '%s sync'.\n", branding.CLIName(), branding.CLIName())
		return nil
	},
}
