package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
)

// setupHome isolates the Mycelium home, the user home and the working
// directory so no real tool config is touched.
func setupHome(t *testing.T) (home, user string) {
	t.Helper()
	home = t.TempDir()
	user = t.TempDir()
	t.Setenv("MYCELIUM_HOME", home)
	t.Setenv("MYCELIUM_USER_HOME", user)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home, user
}

// resetFlags restores every flag of cmd and its children to its default,
// since the command tree is package state shared between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func claudeServers(t *testing.T, user string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(user, ".claude.json"))
	if err != nil {
		t.Fatalf("reading .claude.json: %v", err)
	}
	var doc struct {
		MCPServers map[string]any `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing .claude.json: %v", err)
	}
	return doc.MCPServers
}

func TestAddSyncDisableVerify(t *testing.T) {
	_, user := setupHome(t)

	out := mustRun(t, "add", "mcp", "pg", "--command", "npx", "--arg", "-y", "--arg", "pg-mcp")
	if !strings.Contains(out, "Added mcp pg (global)") {
		t.Errorf("add output = %q", out)
	}

	out = mustRun(t, "sync", "--tool", "claude-code", "--no-backup")
	if !strings.Contains(out, "Synced 1 tool(s).") {
		t.Errorf("sync output = %q", out)
	}
	servers := claudeServers(t, user)
	pg, ok := servers["pg"].(map[string]any)
	if !ok {
		t.Fatalf("pg not synced: %v", servers)
	}
	if pg["command"] != "npx" {
		t.Errorf("command = %v, want npx", pg["command"])
	}

	mustRun(t, "disable", "pg")

	// The tool still has the server until the next sync.
	_, err := run(t, "verify")
	if !errors.Is(err, errDrift) {
		t.Fatalf("verify error = %v, want errDrift", err)
	}

	mustRun(t, "sync", "--tool", "claude-code", "--no-backup")
	if _, ok := claudeServers(t, user)["pg"]; ok {
		t.Error("disabled server still in .claude.json")
	}
	if _, err := run(t, "verify"); err != nil {
		t.Errorf("verify after sync: %v", err)
	}
}

func TestAddDuplicate(t *testing.T) {
	home, _ := setupHome(t)

	mustRun(t, "add", "mcp", "pg", "--command", "npx")
	if _, err := run(t, "add", "mcp", "pg", "--command", "npx"); err == nil {
		t.Fatal("second add succeeded, want already exists")
	}
	mustRun(t, "add", "mcp", "pg", "--command", "uvx", "--force")

	m, err := manifest.Read(home)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get(manifest.SectionMCPs, "pg").Command; got != "uvx" {
		t.Errorf("command = %q, want uvx", got)
	}
}

func TestListJSON(t *testing.T) {
	setupHome(t)

	mustRun(t, "add", "mcp", "pg", "--command", "npx", "--tool", "codex")
	mustRun(t, "add", "mcp", "gh", "--command", "gh-mcp", "--exclude-tool", "gemini-cli")
	mustRun(t, "remove", "gh")

	out := mustRun(t, "list", "--json")
	var entries []listEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("parsing list output: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Name != "pg" {
		t.Fatalf("entries = %+v, want only pg", entries)
	}
	if entries[0].Scope != "global" || entries[0].State != "enabled" {
		t.Errorf("entry = %+v", entries[0])
	}
	if len(entries[0].Tools) != 1 || entries[0].Tools[0] != "codex" {
		t.Errorf("tools = %v, want [codex]", entries[0].Tools)
	}

	out = mustRun(t, "list", "--json", "--all")
	entries = nil
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries with --all, want 2", len(entries))
	}
	if entries[0].Name != "gh" || entries[0].State != "deleted" {
		t.Errorf("first entry = %+v, want deleted gh", entries[0])
	}
	if len(entries[0].Tools) != 1 || entries[0].Tools[0] != "!gemini-cli" {
		t.Errorf("tools = %v, want [!gemini-cli]", entries[0].Tools)
	}
}

func TestProjectScope(t *testing.T) {
	setupHome(t)
	project := t.TempDir()

	mustRun(t, "init", "--project", project)
	if _, err := os.Stat(filepath.Join(project, ".mycelium", "manifest.yaml")); err != nil {
		t.Fatalf("project manifest not created: %v", err)
	}

	mustRun(t, "add", "mcp", "pg", "--command", "npx", "--global")
	out := mustRun(t, "add", "mcp", "pg", "--command", "uvx", "--project", project)
	if !strings.Contains(out, "(project)") {
		t.Errorf("add output = %q", out)
	}

	out = mustRun(t, "conflicts", "--project", project)
	if !strings.Contains(out, "pg") {
		t.Errorf("conflicts output = %q, want pg", out)
	}
}

func TestSyncUnknownTool(t *testing.T) {
	setupHome(t)

	_, err := run(t, "sync", "--tool", "cursor")
	if !errors.Is(err, integrations.ErrUnsupportedTool) {
		t.Errorf("err = %v, want ErrUnsupportedTool", err)
	}
}

func TestVersion(t *testing.T) {
	setupHome(t)
	buildVersion = "1.2.3"

	out := mustRun(t, "version", "--short")
	if strings.TrimSpace(out) != "1.2.3" {
		t.Errorf("version --short = %q", out)
	}
}

func TestParseEnvPairs(t *testing.T) {
	env, err := parseEnvPairs([]string{"DB_URL=${DB_URL}", " TOKEN =a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if env["DB_URL"] != "${DB_URL}" {
		t.Errorf("DB_URL = %q", env["DB_URL"])
	}
	if env["TOKEN"] != "a=b" {
		t.Errorf("TOKEN = %q, want a=b", env["TOKEN"])
	}

	for _, bad := range []string{"NOVALUE", "=x"} {
		if _, err := parseEnvPairs([]string{bad}); err == nil {
			t.Errorf("parseEnvPairs(%q) succeeded", bad)
		}
	}

	env, err = parseEnvPairs(nil)
	if err != nil || env != nil {
		t.Errorf("parseEnvPairs(nil) = %v, %v", env, err)
	}
}

func TestVersionJSON(t *testing.T) {
	setupHome(t)

	out := mustRun(t, "version", "--json")
	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("parsing version output: %v\n%s", err, out)
	}
	if info.ManifestVersion != manifest.CurrentVersion {
		t.Errorf("manifestVersion = %q", info.ManifestVersion)
	}
	if len(info.Tools) != len(integrations.AllTools()) {
		t.Errorf("tools = %v", info.Tools)
	}
}

func TestEnvCheck(t *testing.T) {
	setupHome(t)

	mustRun(t, "add", "mcp", "pg", "--command", "npx", "--env", "DB_URL=${MYCELIUM_CLI_TEST_DB}")
	out, err := run(t, "env", "check")
	if err == nil {
		t.Fatal("env check succeeded with an unresolved reference")
	}
	if !strings.Contains(out, "${MYCELIUM_CLI_TEST_DB}") {
		t.Errorf("output = %q", out)
	}

	t.Setenv("MYCELIUM_CLI_TEST_DB", "postgres://localhost")
	out = mustRun(t, "env", "check")
	if !strings.Contains(out, "All 1 reference(s) resolved.") {
		t.Errorf("output = %q", out)
	}
}

func TestDoctorReportsDanglingLinks(t *testing.T) {
	_, user := setupHome(t)
	mustRun(t, "init")

	skills := filepath.Join(user, ".claude", "skills")
	if err := os.MkdirAll(skills, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(t.TempDir(), "gone"), filepath.Join(skills, "gone")); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "doctor")
	if !strings.Contains(out, "Valid manifest") {
		t.Errorf("doctor output lacks manifest check:\n%s", out)
	}
	if !strings.Contains(out, "target does not exist") {
		t.Errorf("doctor output lacks dangling link:\n%s", out)
	}
}
