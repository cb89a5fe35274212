package platform

import (
	"os"
	"runtime"
)

// permBitsSupported is false where the filesystem ignores Unix mode bits.
var permBitsSupported = runtime.GOOS != "windows"

// Chmod sets file permissions. It does nothing where mode bits are not
// supported.
func Chmod(path string, mode os.FileMode) error {
	if !permBitsSupported {
		return nil
	}
	return os.Chmod(path, mode)
}

// CheckPerm reports the permission bits of path and whether they equal
// want. Without mode bit support every file matches.
func CheckPerm(path string, want os.FileMode) (os.FileMode, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}
	got := info.Mode().Perm()
	if !permBitsSupported {
		return got, true, nil
	}
	return got, got == want.Perm(), nil
}
