package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/lifecycle"
	"github.com/mycelium-labs/mycelium/internal/manifest"
)

var (
	itemType     string
	removePurge  bool
	removeSource string
)

func init() {
	for _, c := range []*cobra.Command{enableCmd, disableCmd, removeCmd} {
		c.Flags().StringVar(&itemType, "type", "", "Item type, needed when the name exists in several sections")
		rootCmd.AddCommand(c)
	}
	removeCmd.Flags().BoolVar(&removePurge, "purge", false, "Delete the entry, its canonical skill directory and tool links instead of marking it removed")
	removeCmd.Flags().StringVar(&removeSource, "source", "", "Remove every item added from this source")
}

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStateChange(cmd, args[0], (*lifecycle.Manager).Enable)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an item without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStateChange(cmd, args[0], (*lifecycle.Manager).Disable)
	},
}

func runStateChange(cmd *cobra.Command, name string, op func(*lifecycle.Manager, string, manifest.Section) (lifecycle.Change, error)) error {
	section, err := parseType(itemType)
	if err != nil {
		return err
	}
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	change, err := op(ws.lifecycle(), name, section)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if change.From == change.To {
		fmt.Fprintf(out, "%s %s is already %s (%s).\n", change.Section.Singular(), name, change.To, ws.scopeName())
		return nil
	}
	fmt.Fprintf(out, "%s %s: %s -> %s (%s).\n", change.Section.Singular(), name, change.From, change.To, ws.scopeName())
	printSyncHint(out)
	return nil
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an item from every tool",
	Long: `Mark an item removed. The entry stays in the manifest as a tombstone so
sync removes it from every tool and verify can detect tools that still have it.

With --purge the entry is deleted outright together with its canonical skill
directory and tool symlinks. With --source every item added from that source
is removed.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if removeSource != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	section, err := parseType(itemType)
	if err != nil {
		return err
	}
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	mgr := ws.lifecycle()

	var outcome lifecycle.Outcome
	switch {
	case removeSource != "":
		outcome, err = mgr.RemoveBySource(cmd.Context(), removeSource)
	case removePurge:
		outcome, err = mgr.Purge(cmd.Context(), args[0], section)
	default:
		outcome, err = mgr.Remove(cmd.Context(), args[0], section)
	}
	if err != nil {
		return err
	}
	printOutcome(cmd, outcome, ws.scopeName())
	return nil
}

func printOutcome(cmd *cobra.Command, o lifecycle.Outcome, scope string) {
	out := cmd.OutOrStdout()
	for _, c := range o.Changes {
		if c.To == "" {
			fmt.Fprintf(out, "Purged %s %s (%s).\n", c.Section.Singular(), c.Name, scope)
			continue
		}
		fmt.Fprintf(out, "Removed %s %s (%s).\n", c.Section.Singular(), c.Name, scope)
	}
	for _, p := range o.RemovedPaths {
		fmt.Fprintf(out, "  deleted %s\n", p)
	}
	for _, p := range o.EditedPaths {
		fmt.Fprintf(out, "  cleaned %s\n", p)
	}
	for _, id := range o.Released {
		fmt.Fprintf(out, "Released plugin %s.\n", id)
	}
	for _, e := range o.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
	}
	for _, w := range o.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}
	printSyncHint(out)
}

func printSyncHint(out io.Writer) {
	fmt.Fprintf(out, "Run '%s sync' to apply.\n", branding.CLIName())
}
