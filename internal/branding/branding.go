// Package branding provides compile-time identity values for the CLI.
//
// Values live in branding.yaml next to this file and are baked into the
// binary with //go:embed. Hard defaults cover an empty or missing file.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName      string `yaml:"cli_name"`
	DisplayName  string `yaml:"display_name"`
	Description  string `yaml:"description"`
	HomeDir      string `yaml:"home_dir"`
	EnvPrefix    string `yaml:"env_prefix"`
	GoModule     string `yaml:"go_module"`
	GitHubRepo   string `yaml:"github_repo"`
	BackupSuffix string `yaml:"backup_suffix"`
}

func load() {
	once.Do(func() {
		defaults = brand{
			CLIName:      "mycelium",
			DisplayName:  "Mycelium",
			Description:  "Keeps AI coding tools in sync with one declared set of items",
			HomeDir:      ".mycelium",
			EnvPrefix:    "MYCELIUM",
			GoModule:     "github.com/mycelium-labs/mycelium",
			GitHubRepo:   "mycelium-labs/mycelium",
			BackupSuffix: ".mycelium-backup",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "mycelium").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "Mycelium").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".mycelium").
// The same name is used for the project-scope directory inside a repo.
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "MYCELIUM").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// GitHubRepo returns the "owner/repo" string.
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// BackupSuffix returns the suffix appended to tool config backups
// (e.g., "config.toml" -> "config.toml.mycelium-backup").
func BackupSuffix() string { load(); return defaults.BackupSuffix }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "MYCELIUM_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
