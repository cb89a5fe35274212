package userdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mycelium-labs/mycelium/internal/branding"
)

// Directory and file name constants for the ~/.mycelium layout.
const (
	SkillsDir    = "skills"
	EnvFile      = ".env"
	ManifestFile = "manifest.yaml"
)

// Permission constants.
const (
	DirPermSecure  os.FileMode = 0700
	FilePermSecure os.FileMode = 0600
	DirPermNormal  os.FileMode = 0755
)

// GetHome returns the Mycelium home directory. It checks MYCELIUM_HOME
// first, then falls back to ~/.mycelium. This is also the global scope
// directory holding the global manifest.
func GetHome() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// GetUserHome returns the directory tool configs are resolved against
// (normally $HOME). MYCELIUM_USER_HOME overrides it, which keeps tests and
// dry experiments away from real tool configs.
func GetUserHome() (string, error) {
	if v := os.Getenv(branding.EnvVar("USER_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return home, nil
}

// GetGlobalScopeDir returns the directory containing the global manifest.
func GetGlobalScopeDir() string {
	return GetHome()
}

// GetProjectScopeDir returns the directory containing a project's manifest
// (<project>/.mycelium).
func GetProjectScopeDir(projectPath string) string {
	return filepath.Join(projectPath, branding.HomeDir())
}

// GetSkillsDir returns the canonical skills directory that tool skill
// symlinks point into.
func GetSkillsDir() string {
	return filepath.Join(GetHome(), SkillsDir)
}

// GetSkillPath returns the canonical location of a named skill.
func GetSkillPath(name string) string {
	return filepath.Join(GetSkillsDir(), name)
}

// GetEnvFilePath returns the default .env file path.
func GetEnvFilePath() string {
	return filepath.Join(GetHome(), EnvFile)
}

// FindProjectRoot walks up from start looking for a directory that holds a
// project manifest (.mycelium/manifest.yaml). The home directory's own
// .mycelium is the global scope and never counts as a project.
func FindProjectRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	global := filepath.Clean(GetGlobalScopeDir())

	for {
		scope := GetProjectScopeDir(dir)
		if filepath.Clean(scope) != global {
			if _, err := os.Stat(filepath.Join(scope, ManifestFile)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
