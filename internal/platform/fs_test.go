package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWriteFileAtomic_CreatesParents(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "a", "b", "config.json")

	if err := WriteFileAtomic(path, []byte(`{"x":1}`), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"x":1}` {
		t.Errorf("content = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomic_KeepsPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	tmp := t.TempDir()
	path := filepath.Join(tmp, "secret.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := WriteFileAtomic(path, []byte("a = 2\n"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestCopyFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.txt")
	dst := filepath.Join(tmp, "nested", "dst.txt")
	if err := os.WriteFile(src, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original" {
		t.Errorf("dst content = %q", data)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("source should remain after copy")
	}
}

func TestBackupOnce(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.toml")
	backup := path + ".bak"

	os.WriteFile(path, []byte("original"), 0644)
	copied, err := BackupOnce(path, backup)
	if err != nil || !copied {
		t.Fatalf("first BackupOnce = %v, %v", copied, err)
	}

	os.WriteFile(path, []byte("second"), 0644)
	copied, err = BackupOnce(path, backup)
	if err != nil || copied {
		t.Fatalf("second BackupOnce = %v, %v", copied, err)
	}
	data, _ := os.ReadFile(backup)
	if string(data) != "original" {
		t.Errorf("backup = %q, want original", data)
	}
}
