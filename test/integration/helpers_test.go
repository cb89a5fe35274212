//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/lifecycle"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/merge"
	"github.com/mycelium-labs/mycelium/internal/syncer"
	"github.com/mycelium-labs/mycelium/internal/userdata"
	"github.com/mycelium-labs/mycelium/internal/verify"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir    string // MYCELIUM_HOME: global manifest, skills/, .env
	UserHome   string // MYCELIUM_USER_HOME: where tool configs live
	ProjectDir string // A mock project directory
}

// setupTestEnv creates isolated temp directories and sets environment variables
// so all Mycelium operations are sandboxed. The env vars are restored after the test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:    t.TempDir(),
		UserHome:   t.TempDir(),
		ProjectDir: t.TempDir(),
	}

	t.Setenv("MYCELIUM_HOME", env.HomeDir)
	t.Setenv("MYCELIUM_USER_HOME", env.UserHome)

	if err := userdata.InitGlobal(&strings.Builder{}); err != nil {
		t.Fatalf("InitGlobal: %v", err)
	}
	return env
}

// SkillsDir is the canonical skill store.
func (e *testEnv) SkillsDir() string {
	return userdata.GetSkillsDir()
}

func (e *testEnv) globalManager() *lifecycle.Manager {
	return lifecycle.New(lifecycle.Options{
		ScopeDir:  userdata.GetGlobalScopeDir(),
		Home:      e.UserHome,
		SkillsDir: e.SkillsDir(),
	})
}

func (e *testEnv) projectManager() *lifecycle.Manager {
	return lifecycle.New(lifecycle.Options{
		ScopeDir:  userdata.GetProjectScopeDir(e.ProjectDir),
		Home:      e.UserHome,
		SkillsDir: e.SkillsDir(),
	})
}

// merged loads the global manifest and, when withProject is set, the
// project manifest.
func (e *testEnv) merged(withProject bool) *merge.MergedConfig {
	global := manifest.Load(userdata.GetGlobalScopeDir())
	var project *manifest.Manifest
	if withProject {
		project = manifest.Load(userdata.GetProjectScopeDir(e.ProjectDir))
	}
	return merge.MergeConfigs(global, project)
}

func (e *testEnv) syncer(backup bool, env map[string]string) *syncer.Syncer {
	return syncer.New(syncer.Options{
		Home:      e.UserHome,
		SkillsDir: e.SkillsDir(),
		Env:       env,
		Backup:    backup,
	})
}

// syncAll syncs tools and fails the test on any unsuccessful result.
func (e *testEnv) syncAll(t *testing.T, s *syncer.Syncer, merged *merge.MergedConfig, tools ...integrations.ToolID) {
	t.Helper()
	for _, r := range s.SyncAll(context.Background(), tools, merged) {
		if !r.Success {
			t.Fatalf("sync %s: error=%v items=%v", r.Tool, r.Error, r.Errors)
		}
	}
}

func (e *testEnv) verifyAll(t *testing.T, merged *merge.MergedConfig) []verify.Result {
	t.Helper()
	results, err := verify.New(verify.Config{Home: e.UserHome, Merged: merged}).VerifyAll(context.Background(), verify.Options{})
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	return results
}

// writeSkill creates a canonical skill directory with a SKILL.md.
func writeSkill(t *testing.T, skillsDir, name string) string {
	t.Helper()
	dir := filepath.Join(skillsDir, name)
	writeFile(t, filepath.Join(dir, "SKILL.md"), "---\nname: "+name+"\n---\n# "+name+"\n")
	return dir
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertNotExists fails the test if anything, including a dangling link,
// exists at path.
func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); err == nil {
		t.Errorf("expected %s NOT to exist", path)
	}
}

// assertSymlinkTo fails unless path is a symlink pointing at target.
func assertSymlinkTo(t *testing.T, path, target string) {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Errorf("expected symlink at %s: %v", path, err)
		return
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("expected %s to be a symlink, mode %v", path, info.Mode())
		return
	}
	got, err := os.Readlink(path)
	if err != nil {
		t.Errorf("readlink %s: %v", path, err)
		return
	}
	if got != target {
		t.Errorf("%s -> %s, want %s", path, got, target)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}

// assertFileNotContains fails if the file contains substr.
func assertFileNotContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if strings.Contains(string(data), substr) {
		t.Errorf("file %s still contains %q.\nContents:\n%s", path, substr, string(data))
	}
}
