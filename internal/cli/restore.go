package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/integrations"
)

var restoreTools []string

func init() {
	restoreCmd.Flags().StringSliceVarP(&restoreTools, "tool", "t", nil, "Tool to restore (repeatable; default: all tools)")
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Put back tool config files saved by the last sync",
	Long: `Copy each *.mycelium-backup file over the config or memory file it was
taken from and delete the backup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tools := integrations.AllTools()
		if len(restoreTools) > 0 {
			var err error
			if tools, err = parseTools(restoreTools); err != nil {
				return err
			}
		}
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		s, err := ws.syncer(syncFlags{})
		if err != nil {
			return err
		}

		results := s.RestoreBackups(cmd.Context(), tools)
		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No backups found.")
			return nil
		}
		failed := 0
		for _, r := range results {
			if r.Error != nil {
				failed++
				fmt.Fprintf(out, "  [FAIL] %s: %v\n", integrations.DisplayName(r.Tool), r.Error)
				continue
			}
			fmt.Fprintf(out, "  [ OK ] %s: restored %s\n", integrations.DisplayName(r.Tool), r.Path)
		}
		if failed > 0 {
			return fmt.Errorf("%d backup(s) could not be restored", failed)
		}
		return nil
	},
}
