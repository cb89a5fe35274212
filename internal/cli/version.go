package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	rootCmd.AddCommand(versionCmd)
}

type versionInfo struct {
	Version         string   `json:"version"`
	Commit          string   `json:"commit"`
	Date            string   `json:"date"`
	ManifestVersion string   `json:"manifestVersion"`
	Tools           []string `json:"tools"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version, manifest format and supported tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, buildVersion)
			return nil
		}

		info := versionInfo{
			Version:         buildVersion,
			Commit:          buildCommit,
			Date:            buildDate,
			ManifestVersion: manifest.CurrentVersion,
		}
		for _, id := range integrations.AllTools() {
			info.Tools = append(info.Tools, string(id))
		}

		if versionJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling version info: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "%s %s (commit %s, built %s)\n", branding.CLIName(), info.Version, info.Commit, info.Date)
		fmt.Fprintf(out, "manifest format %s\n", info.ManifestVersion)
		fmt.Fprintf(out, "tools: %s\n", strings.Join(info.Tools, ", "))
		return nil
	},
}
