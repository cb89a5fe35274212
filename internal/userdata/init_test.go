package userdata

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mycelium-labs/mycelium/internal/manifest"
)

func TestInitGlobal_CreatesStructure(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "home")
	t.Setenv("MYCELIUM_HOME", tmp)

	var buf bytes.Buffer
	if err := InitGlobal(&buf); err != nil {
		t.Fatalf("InitGlobal failed: %v", err)
	}

	assertDirExists(t, tmp)
	assertDirExists(t, filepath.Join(tmp, "skills"))
	assertFileExists(t, filepath.Join(tmp, ".env"))
	assertFileExists(t, filepath.Join(tmp, "manifest.yaml"))

	assertDirPerm(t, filepath.Join(tmp, "skills"), DirPermNormal)
	assertDirPerm(t, filepath.Join(tmp, ".env"), FilePermSecure)

	if !strings.Contains(buf.String(), "[ OK ]") {
		t.Error("expected [ OK ] in output")
	}
}

func TestInitGlobal_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("MYCELIUM_HOME", tmp)

	var buf1 bytes.Buffer
	if err := InitGlobal(&buf1); err != nil {
		t.Fatalf("first InitGlobal failed: %v", err)
	}

	manifestPath := filepath.Join(tmp, "manifest.yaml")
	os.WriteFile(manifestPath, []byte("version: \"1.0.0\"\nmcps: {}\n"), 0644)

	var buf2 bytes.Buffer
	if err := InitGlobal(&buf2); err != nil {
		t.Fatalf("second InitGlobal failed: %v", err)
	}
	if !strings.Contains(buf2.String(), "[SKIP]") {
		t.Error("expected [SKIP] messages in second run")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if !strings.Contains(string(data), "mcps: {}") {
		t.Error("existing manifest was overwritten")
	}
}

func TestInitGlobal_ManifestIsReadable(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("MYCELIUM_HOME", tmp)

	var buf bytes.Buffer
	if err := InitGlobal(&buf); err != nil {
		t.Fatalf("InitGlobal failed: %v", err)
	}

	m, err := manifest.Read(tmp)
	if err != nil {
		t.Fatalf("reading created manifest: %v", err)
	}
	if m.Version != manifest.CurrentVersion {
		t.Errorf("version = %q, want %q", m.Version, manifest.CurrentVersion)
	}
	if n := len(m.Items(manifest.SectionSkills)); n != 0 {
		t.Errorf("new manifest has %d skills", n)
	}
}

func TestInitProject(t *testing.T) {
	project := t.TempDir()

	var buf bytes.Buffer
	if err := InitProject(&buf, project); err != nil {
		t.Fatalf("InitProject failed: %v", err)
	}
	assertFileExists(t, filepath.Join(project, ".mycelium", "manifest.yaml"))
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	os.WriteFile(path, []byte("x"), 0644)

	var buf bytes.Buffer
	if err := ensureDir(&buf, path, DirPermNormal); err == nil {
		t.Error("expected error when a file occupies the directory path")
	}
}

// Helpers

func assertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("directory %s does not exist: %v", path, err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", path)
	}
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file %s does not exist: %v", path, err)
	}
	if info.IsDir() {
		t.Fatalf("%s is a directory, expected file", path)
	}
}

func assertDirPerm(t *testing.T, path string, expected os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	actual := info.Mode().Perm()
	if actual != expected {
		t.Errorf("permissions on %s: expected %o, got %o", path, expected, actual)
	}
}
