package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/codec"
	"github.com/mycelium-labs/mycelium/internal/config"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/platform"
	"github.com/mycelium-labs/mycelium/internal/userdata"
)

var envShowNoRedact bool

func init() {
	envShowCmd.Flags().BoolVar(&envShowNoRedact, "no-redact", false, "Show values without redaction")

	envCmd.AddCommand(envEditCmd)
	envCmd.AddCommand(envShowCmd)
	envCmd.AddCommand(envCheckCmd)
	rootCmd.AddCommand(envCmd)
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage the values substituted into ${NAME} references",
	Long: `Manage the .env file whose values replace ${NAME} references in MCP
commands, arguments and env blocks during sync. Variables set in the process
environment take precedence over the file.`,
}

// Template comments for a newly created env file.
const envFileTemplate = `# Values substituted into ${NAME} references in the manifest.
# Add KEY=VALUE pairs below. Lines starting with # are comments.
`

var envEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the env file in your editor",
	Long:  `Open the env file in your preferred editor ($EDITOR, defaults to vi).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.EnvFile()

		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			dir := filepath.Dir(path)
			if err := os.MkdirAll(dir, userdata.DirPermSecure); err != nil {
				return fmt.Errorf("creating directory %s: %w", dir, err)
			}
			if err := os.WriteFile(path, []byte(envFileTemplate), userdata.FilePermSecure); err != nil {
				return fmt.Errorf("creating env file %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		}

		if err := userdata.OpenEditor(path); err != nil {
			return err
		}

		// Ensure secure permissions after editing.
		return platform.Chmod(path, userdata.FilePermSecure)
	},
}

var envShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print env file contents (redacted by default)",
	Long: `Print the env file with values of keys that look sensitive (TOKEN, SECRET,
PASSWORD, KEY, CREDENTIAL) redacted. Use --no-redact to show actual values.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.EnvFile()
		out := cmd.OutOrStdout()

		entries, err := userdata.ParseEnvFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(out, "No env file at %s. Run 'env edit' to create one.\n", path)
			return nil
		}
		var lineErr *userdata.EnvLineError
		if err != nil && !errors.As(err, &lineErr) {
			return err
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "(empty)")
			return nil
		}

		fmt.Fprintf(out, "# %s\n", path)
		for _, e := range entries {
			value := e.Value
			if !envShowNoRedact {
				value = userdata.RedactValue(e.Key, e.Value)
			}
			fmt.Fprintf(out, "%s=%s\n", e.Key, value)
		}
		return nil
	},
}

var envCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "List ${NAME} references that no variable defines",
	Long: `Collect the ${NAME} references of every enabled MCP server in the merged
manifests and report those defined neither in the env file nor in the process
environment. Unresolved references are synced as empty strings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		env, err := userdata.LoadEnv(config.EnvFile())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		refs := codec.References(ws.merged().Items(manifest.SectionMCPs))
		missing := userdata.MissingRefs(refs, env)
		if len(missing) == 0 {
			fmt.Fprintf(out, "All %d reference(s) resolved.\n", len(refs))
			return nil
		}
		for _, name := range missing {
			fmt.Fprintf(out, "  [MISS] ${%s}\n", name)
		}
		return fmt.Errorf("%d of %d reference(s) unresolved; add them to %s", len(missing), len(refs), config.EnvFile())
	},
}
