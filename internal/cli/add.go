package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/lifecycle"
	"github.com/mycelium-labs/mycelium/internal/manifest"
)

var (
	addCommand      string
	addArgs         []string
	addEnv          []string
	addPath         string
	addTools        []string
	addExcludeTools []string
	addSource       string
	addForce        bool
)

func init() {
	addCmd.Flags().StringVar(&addCommand, "command", "", "Executable for an MCP server")
	addCmd.Flags().StringArrayVar(&addArgs, "arg", nil, "Argument for an MCP server (repeatable)")
	addCmd.Flags().StringArrayVar(&addEnv, "env", nil, "KEY=VALUE environment entry for an MCP server (repeatable); values may use ${NAME}")
	addCmd.Flags().StringVar(&addPath, "path", "", "Source file or directory for file-backed items")
	addCmd.Flags().StringSliceVar(&addTools, "tool", nil, "Only sync to these tools")
	addCmd.Flags().StringSliceVar(&addExcludeTools, "exclude-tool", nil, "Never sync to these tools")
	addCmd.Flags().StringVar(&addSource, "source", "", "Where the item came from, used by 'remove --source'")
	addCmd.Flags().BoolVar(&addForce, "force", false, "Overwrite an existing item")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <type> <name>",
	Short: "Declare a new item",
	Long: `Add an item to the manifest of the current scope (the project when inside
one, otherwise the global manifest).

  mycelium add mcp postgres --command npx --arg -y --arg @pg/mcp --env DB_URL='${DB_URL}'
  mycelium add skill review                 # uses ~/.mycelium/skills/review
  mycelium add agent reviewer --path ./agents/reviewer.md
  mycelium add rule style --path ./STYLE.md --tool claude-code`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	section, err := manifest.ParseSection(args[0])
	if err != nil {
		return err
	}
	env, err := parseEnvPairs(addEnv)
	if err != nil {
		return err
	}

	item := &manifest.Item{
		Name:         args[1],
		Command:      addCommand,
		Args:         addArgs,
		Env:          env,
		Tools:        addTools,
		ExcludeTools: addExcludeTools,
		Source:       addSource,
	}
	if addPath != "" {
		abs, err := filepath.Abs(addPath)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", addPath, err)
		}
		item.Path = abs
	}

	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	if err := ws.lifecycle().Add(section, item, lifecycle.AddOptions{Force: addForce}); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Added %s %s (%s).\n", section.Singular(), item.Name, ws.scopeName())
	printSyncHint(out)
	return nil
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --env %q, want KEY=VALUE", p)
		}
		env[strings.TrimSpace(k)] = v
	}
	return env, nil
}
