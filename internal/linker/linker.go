package linker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mycelium-labs/mycelium/internal/platform"
)

// Action is what CreateSkillSymlink did to the link path.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionReplaced  Action = "replaced"
	ActionRemoved   Action = "removed"
	ActionFailed    Action = "failed"
)

// Result describes the outcome for one link path.
type Result struct {
	Name       string
	Action     Action
	Path       string
	BackupPath string
	Error      error
}

// now is replaceable in tests.
var now = time.Now

// CreateSkillSymlink makes dst a symlink to src. An existing link is
// compared by its literal target string; anything that is not a link is
// renamed to <dst>.backup.<unix-seconds> first.
func CreateSkillSymlink(src, dst string) Result {
	res := Result{Path: dst}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return failed(res, fmt.Errorf("creating %s: %w", filepath.Dir(dst), err))
	}

	if target, err := platform.ReadSymlinkTarget(dst); err == nil {
		if target == src {
			res.Action = ActionUnchanged
			return res
		}
		if err := platform.RemoveSymlink(dst); err != nil {
			return failed(res, fmt.Errorf("removing stale link %s: %w", dst, err))
		}
		res.Action = ActionUpdated
	} else if platform.Lexists(dst) {
		backup, err := backupPath(dst)
		if err != nil {
			return failed(res, err)
		}
		if err := os.Rename(dst, backup); err != nil {
			return failed(res, fmt.Errorf("moving %s aside: %w", dst, err))
		}
		res.Action = ActionReplaced
		res.BackupPath = backup
	} else {
		res.Action = ActionCreated
	}

	if err := platform.CreateSymlink(src, dst); err != nil {
		return failed(res, fmt.Errorf("linking %s -> %s: %w", dst, src, err))
	}
	return res
}

// RemoveSkillSymlink removes path if it is a symlink. Regular files and
// directories are left alone and reported as not removed.
func RemoveSkillSymlink(path string) (bool, error) {
	if _, err := platform.ReadSymlinkTarget(path); err != nil {
		return false, nil
	}
	if err := platform.RemoveSymlink(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("removing link %s: %w", path, err)
	}
	return true, nil
}

// backupPath picks a free <path>.backup.<unix> name.
func backupPath(path string) (string, error) {
	base := path + ".backup." + strconv.FormatInt(now().Unix(), 10)
	candidate := base
	for i := 1; platform.Lexists(candidate); i++ {
		if i > 100 {
			return "", fmt.Errorf("no free backup name for %s", path)
		}
		candidate = base + "." + strconv.Itoa(i)
	}
	return candidate, nil
}

func failed(res Result, err error) Result {
	res.Action = ActionFailed
	res.Error = err
	return res
}

// LinkName returns the entry name used inside a tool directory. Directory
// sources link by item name; file sources keep their extension so tools
// that filter on *.md still see them.
func LinkName(name, source string) string {
	info, err := os.Stat(source)
	if err == nil && info.IsDir() {
		return name
	}
	ext := filepath.Ext(source)
	if ext == "" || filepath.Ext(name) == ext {
		return name
	}
	return name + ext
}
