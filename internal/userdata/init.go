package userdata

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/platform"
)

const defaultEnvContent = `# Values substituted into ${NAME} references in manifest env blocks.
# Process environment variables take precedence over entries here.
`

// layoutEntry is one path InitGlobal or InitProject makes sure exists.
// Entries with a nil write are directories created with perm.
type layoutEntry struct {
	path  string
	perm  os.FileMode
	write func(path string) error
}

// InitGlobal creates the home layout: the home directory, the canonical
// skills directory, a private .env and an empty global manifest. Existing
// entries are left alone and reported as skipped on w.
func InitGlobal(w io.Writer) error {
	root := GetHome()
	return ensureLayout(w, []layoutEntry{
		{path: root, perm: DirPermNormal},
		{path: filepath.Join(root, SkillsDir), perm: DirPermNormal},
		{path: filepath.Join(root, EnvFile), write: writeContent(defaultEnvContent, FilePermSecure)},
		{path: manifest.Path(root), write: writeEmptyManifest(root)},
	})
}

// InitProject creates <projectPath>/.mycelium with an empty manifest.
func InitProject(w io.Writer, projectPath string) error {
	scope := GetProjectScopeDir(projectPath)
	return ensureLayout(w, []layoutEntry{
		{path: scope, perm: DirPermNormal},
		{path: manifest.Path(scope), write: writeEmptyManifest(scope)},
	})
}

func ensureLayout(w io.Writer, entries []layoutEntry) error {
	for _, e := range entries {
		var err error
		if e.write == nil {
			err = ensureDir(w, e.path, e.perm)
		} else {
			err = ensureFile(w, e.path, e.write)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeContent(content string, perm os.FileMode) func(string) error {
	return func(path string) error {
		return platform.WriteFileAtomic(path, []byte(content), perm)
	}
}

// writeEmptyManifest goes through the manifest store so the file is
// schema-valid and carries the current format version.
func writeEmptyManifest(scopeDir string) func(string) error {
	return func(string) error {
		return manifest.Save(scopeDir, manifest.New())
	}
}

func ensureDir(w io.Writer, path string, perm os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			fmt.Fprintf(w, "  [SKIP] %s already exists\n", path)
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	// MkdirAll is subject to umask.
	if err := platform.Chmod(path, perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	fmt.Fprintf(w, "  [ OK ] Created %s\n", path)
	return nil
}

func ensureFile(w io.Writer, path string, write func(string) error) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  [SKIP] %s already exists\n", path)
		return nil
	}
	if err := write(path); err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	fmt.Fprintf(w, "  [ OK ] Created %s\n", path)
	return nil
}
