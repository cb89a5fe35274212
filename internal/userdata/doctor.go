package userdata

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/platform"
)

// CheckHome validates the home directory layout and permissions.
// When fix is true, it attempts to repair issues.
func CheckHome(w io.Writer, fix bool) error {
	root := GetHome()

	fmt.Fprintln(w, "Home check:")

	if _, statErr := os.Stat(root); os.IsNotExist(statErr) {
		fmt.Fprintf(w, "  [MISS] %s does not exist\n", root)
		if fix {
			fmt.Fprintf(w, "  [FIX ] Running %s init...\n", branding.CLIName())
			if initErr := InitGlobal(w); initErr != nil {
				return fmt.Errorf("auto-fix init: %w", initErr)
			}
		} else {
			fmt.Fprintf(w, "         Run '%s init' to create\n", branding.CLIName())
		}
		return nil
	}
	fmt.Fprintf(w, "  [ OK ] %s exists\n", root)

	checkFileExists(w, filepath.Join(root, ManifestFile))
	checkDirExists(w, filepath.Join(root, SkillsDir), fix)
	checkBrokenSkills(w, filepath.Join(root, SkillsDir))
	checkFilePerm(w, filepath.Join(root, EnvFile), FilePermSecure, fix)

	if platform.IsSymlinkSupported() {
		fmt.Fprintln(w, "  [ OK ] symlinks supported")
	} else {
		fmt.Fprintln(w, "  [WARN] symlinks not supported, files will be copied")
	}
	return nil
}

func checkFileExists(w io.Writer, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(w, "  [MISS] %s does not exist\n", path)
		return
	}
	fmt.Fprintf(w, "  [ OK ] %s exists\n", path)
}

func checkDirExists(w io.Writer, path string, fix bool) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(w, "  [MISS] %s does not exist\n", path)
		if fix {
			if mkErr := os.MkdirAll(path, DirPermNormal); mkErr != nil {
				fmt.Fprintf(w, "  [FAIL] Could not create %s: %v\n", path, mkErr)
				return
			}
			fmt.Fprintf(w, "  [FIX ] Created %s\n", path)
		}
		return
	}
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", path, err)
		return
	}
	if !info.IsDir() {
		fmt.Fprintf(w, "  [WARN] %s exists but is not a directory\n", path)
		return
	}
	fmt.Fprintf(w, "  [ OK ] %s exists\n", path)
}

// checkBrokenSkills reports skills entries that are dangling symlinks.
func checkBrokenSkills(w io.Writer, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // already reported
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if platform.IsSymlink(path) && !platform.TargetExists(path) {
			target, _ := platform.ReadSymlinkTarget(path)
			fmt.Fprintf(w, "  [WARN] %s -> %s (target does not exist)\n", path, target)
		}
	}
}

func checkFilePerm(w io.Writer, path string, expected os.FileMode, fix bool) {
	perm, ok, err := platform.CheckPerm(path, expected)
	if os.IsNotExist(err) {
		fmt.Fprintf(w, "  [MISS] %s does not exist\n", path)
		return
	}
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", path, err)
		return
	}
	if ok {
		fmt.Fprintf(w, "  [ OK ] %s (permissions %o)\n", path, perm)
		return
	}
	fmt.Fprintf(w, "  [WARN] %s has permissions %o (expected %o)\n", path, perm, expected)
	if fix {
		if chErr := platform.Chmod(path, expected); chErr != nil {
			fmt.Fprintf(w, "  [FAIL] Could not fix permissions on %s: %v\n", path, chErr)
			return
		}
		fmt.Fprintf(w, "  [FIX ] Fixed permissions on %s to %o\n", path, expected)
	}
}
