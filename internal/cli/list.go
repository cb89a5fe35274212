package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/manifest"
)

var (
	listTypeFilter string
	listAll        bool
	listJSON       bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared items",
	Long: `List the items of the merged global and project manifests. Removed items
are hidden unless --all is given.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listTypeFilter, "type", "", "Filter by type (skill, mcp, agent, rule, command, hook, memory)")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include removed items")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents a declared item for display.
type listEntry struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	State  string   `json:"state"`
	Scope  string   `json:"scope"`
	Tools  []string `json:"tools,omitempty"`
	Source string   `json:"source,omitempty"`
	Plugin string   `json:"plugin,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	filter, err := parseType(listTypeFilter)
	if err != nil {
		return err
	}
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	merged := ws.merged()

	var entries []listEntry
	for _, section := range manifest.Sections {
		if filter != "" && section != filter {
			continue
		}
		for name, e := range merged.Section(section) {
			state := e.Item.EffectiveState()
			if state == manifest.StateDeleted && !listAll {
				continue
			}
			entry := listEntry{
				Type:   section.Singular(),
				Name:   name,
				State:  string(state),
				Scope:  string(e.Scope),
				Tools:  toolScope(e.Item),
				Source: e.Item.Source,
			}
			if e.Item.PluginOrigin != nil {
				entry.Plugin = e.Item.PluginOrigin.PluginID
			}
			entries = append(entries, entry)
		}
	}
	sortEntries(entries)

	if len(entries) == 0 {
		if listTypeFilter != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "No items matching --type=%s\n", listTypeFilter)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No items declared yet.")
		}
		return nil
	}

	if listJSON {
		return printListJSON(cmd, entries)
	}
	return printListTable(cmd, entries)
}

// toolScope renders the allow and deny lists, e.g. [codex !gemini-cli].
func toolScope(it *manifest.Item) []string {
	var tools []string
	tools = append(tools, it.Tools...)
	for _, t := range it.ExcludeTools {
		tools = append(tools, "!"+t)
	}
	return tools
}

func sortEntries(entries []listEntry) {
	order := make(map[string]int, len(manifest.Sections))
	for i, s := range manifest.Sections {
		order[s.Singular()] = i
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return order[entries[i].Type] < order[entries[j].Type]
		}
		return entries[i].Name < entries[j].Name
	})
}

func printListTable(cmd *cobra.Command, entries []listEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tSTATE\tSCOPE\tTOOLS")
	for _, e := range entries {
		tools := "all"
		if len(e.Tools) > 0 {
			tools = strings.Join(e.Tools, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Type, e.Name, e.State, e.Scope, tools)
	}
	return w.Flush()
}

func printListJSON(cmd *cobra.Command, entries []listEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
