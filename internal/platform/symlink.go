package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CreateSymlink creates a symbolic link at link pointing to target.
// On Unix systems, this uses os.Symlink directly.
// On Windows, it attempts os.Symlink first (requires developer mode),
// then falls back to copying a regular file and writing a .target sidecar.
// Directory targets have no fallback.
func CreateSymlink(target, link string) error {
	if runtime.GOOS != "windows" {
		return os.Symlink(target, link)
	}

	symErr := os.Symlink(target, link)
	if symErr == nil {
		return nil
	}

	if info, err := os.Stat(resolveAgainst(target, link)); err == nil && info.IsDir() {
		return fmt.Errorf("symlink %s -> %s: %w", link, target, symErr)
	}

	if err := CopyFile(resolveAgainst(target, link), link); err != nil {
		return fmt.Errorf("symlink fallback (copy) failed: %w", err)
	}

	// The copy succeeded; a missing sidecar only degrades ReadSymlinkTarget.
	_ = os.WriteFile(link+".target", []byte(target), 0644)
	return nil
}

// RemoveSymlink removes a symlink (or its fallback copy and sidecar).
func RemoveSymlink(path string) error {
	err := os.Remove(path)
	_ = os.Remove(path + ".target")
	return err
}

// ReadSymlinkTarget returns the target of a symlink exactly as it was
// written. On Windows, if os.Readlink fails (because a copy fallback was
// used), it reads from the .target sidecar file.
func ReadSymlinkTarget(path string) (string, error) {
	target, err := os.Readlink(path)
	if err == nil {
		return target, nil
	}

	if runtime.GOOS != "windows" {
		return "", err
	}

	data, readErr := os.ReadFile(path + ".target")
	if readErr != nil {
		return "", fmt.Errorf("readlink failed and no .target sidecar found: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// IsSymlink reports whether path itself (not its target) is a symlink.
// Missing paths report false.
func IsSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

// Lexists reports whether anything (including a dangling symlink) exists at path.
func Lexists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// TargetExists reports whether the symlink at path resolves to something.
// Relative targets are resolved against the link's directory.
func TargetExists(path string) bool {
	target, err := ReadSymlinkTarget(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolveAgainst(target, path))
	return err == nil
}

// IsSymlinkSupported returns true if the current platform supports native symlinks.
// On Windows this attempts a test symlink to check developer mode.
func IsSymlinkSupported() bool {
	if runtime.GOOS != "windows" {
		return true
	}

	tmpDir := os.TempDir()
	link := filepath.Join(tmpDir, ".mycelium-symlink-test")
	defer os.Remove(link)

	if err := os.Symlink(tmpDir, link); err != nil {
		return false
	}
	return true
}

// IsNotExist is os.IsNotExist that also sees through wrapped errors.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// resolveAgainst resolves a relative symlink target against the directory
// containing link.
func resolveAgainst(target, link string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(filepath.Dir(link), target)
}
