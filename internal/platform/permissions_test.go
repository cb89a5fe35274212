package platform

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestChmodAndCheckPerm(t *testing.T) {
	if !permBitsSupported {
		t.Skip("mode bits not supported")
	}
	tests := []struct {
		name string
		dir  bool
		mode os.FileMode
	}{
		{"env file", false, 0600},
		{"scope dir", true, 0700},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "target")
			var err error
			if tt.dir {
				err = os.Mkdir(path, 0755)
			} else {
				err = os.WriteFile(path, []byte("TOKEN=x\n"), 0644)
			}
			if err != nil {
				t.Fatal(err)
			}

			if _, ok, err := CheckPerm(path, tt.mode); err != nil || ok {
				t.Fatalf("CheckPerm before Chmod = %v, %v; want mismatch", ok, err)
			}
			if err := Chmod(path, tt.mode); err != nil {
				t.Fatalf("Chmod: %v", err)
			}
			got, ok, err := CheckPerm(path, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if !ok || got != tt.mode {
				t.Errorf("CheckPerm = %o, %v; want %o, true", got, ok, tt.mode)
			}
		})
	}
}

func TestCheckPermMissing(t *testing.T) {
	_, _, err := CheckPerm(filepath.Join(t.TempDir(), "nope"), 0600)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}
