package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/manifest"
)

var (
	pluginVersion string
	pluginItems   []string
)

func init() {
	pluginTakeoverCmd.Flags().StringVar(&pluginVersion, "version", "", "Plugin version being taken over")
	pluginTakeoverCmd.Flags().StringArrayVar(&pluginItems, "item", nil, "Item to import as <type>/<name>=<path or MCP command> (repeatable)")

	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginTakeoverCmd)
	pluginCmd.AddCommand(pluginReleaseCmd)
	rootCmd.AddCommand(pluginCmd)
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Take over Claude Code plugins",
	Long: `Move a Claude Code plugin's items into the manifest so they sync to every
tool. The plugin is disabled in Claude Code while taken over and re-enabled
when released or when all of its items are removed.`,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List taken over plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		plugins := ws.merged().TakenOverPlugins()
		out := cmd.OutOrStdout()
		if len(plugins) == 0 {
			fmt.Fprintln(out, "No plugins taken over.")
			return nil
		}
		ids := make([]string, 0, len(plugins))
		for id := range plugins {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PLUGIN\tVERSION\tTAKEN OVER")
		for _, id := range ids {
			p := plugins[id]
			version := p.Version
			if version == "" {
				version = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", id, version, p.TakenOverAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var pluginTakeoverCmd = &cobra.Command{
	Use:   "takeover <plugin-id>",
	Short: "Import a plugin's items and disable the plugin",
	Long: `Import the given items with the plugin recorded as their origin.

  mycelium plugin takeover docs@market --version 1.2.0 \
    --item skill/docs=/path/to/plugin/skills/docs \
    --item mcp/docs-search=docs-mcp`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := parsePluginItems(pluginItems)
		if err != nil {
			return err
		}
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		outcome, err := ws.lifecycle().TakeOverPlugin(cmd.Context(), args[0], pluginVersion, items)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range outcome.Changes {
			fmt.Fprintf(out, "Imported %s %s.\n", c.Section.Singular(), c.Name)
		}
		for _, w := range outcome.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
		}
		fmt.Fprintf(out, "Took over plugin %s (%s).\n", args[0], ws.scopeName())
		printSyncHint(out)
		return nil
	},
}

var pluginReleaseCmd = &cobra.Command{
	Use:   "release <plugin-id>",
	Short: "Remove a plugin's items and re-enable the plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		outcome, err := ws.lifecycle().ReleasePlugin(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printOutcome(cmd, outcome, ws.scopeName())
		return nil
	},
}

// parsePluginItems parses <type>/<name>=<value> specs. The value is the MCP
// command for mcp items and a path for everything else.
func parsePluginItems(specs []string) ([]*manifest.Item, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --item is required")
	}
	items := make([]*manifest.Item, 0, len(specs))
	for _, spec := range specs {
		ref, value, ok := strings.Cut(spec, "=")
		typ, name, ok2 := strings.Cut(ref, "/")
		if !ok || !ok2 || name == "" || value == "" {
			return nil, fmt.Errorf("invalid --item %q, want <type>/<name>=<value>", spec)
		}
		section, err := manifest.ParseSection(typ)
		if err != nil {
			return nil, err
		}
		it := &manifest.Item{Name: name, Section: section}
		if section == manifest.SectionMCPs {
			fields := strings.Fields(value)
			if len(fields) == 0 {
				return nil, fmt.Errorf("invalid --item %q: empty command", spec)
			}
			it.Command = fields[0]
			if len(fields) > 1 {
				it.Args = fields[1:]
			}
		} else {
			abs, err := filepath.Abs(value)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", value, err)
			}
			it.Path = abs
		}
		items = append(items, it)
	}
	return items, nil
}
