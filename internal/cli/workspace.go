package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mycelium-labs/mycelium/internal/config"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/lifecycle"
	"github.com/mycelium-labs/mycelium/internal/manifest"
	"github.com/mycelium-labs/mycelium/internal/merge"
	"github.com/mycelium-labs/mycelium/internal/syncer"
	"github.com/mycelium-labs/mycelium/internal/userdata"
)

// workspace is the resolved set of directories a command works against.
type workspace struct {
	home      string
	userHome  string
	skillsDir string
	// project is the project root, or "" outside a project.
	project string
}

func resolveWorkspace() (*workspace, error) {
	userHome, err := userdata.GetUserHome()
	if err != nil {
		return nil, err
	}
	ws := &workspace{
		home:      userdata.GetHome(),
		userHome:  userHome,
		skillsDir: userdata.GetSkillsDir(),
	}

	switch {
	case globalFlag:
	case projectFlag != "":
		abs, err := filepath.Abs(projectFlag)
		if err != nil {
			return nil, fmt.Errorf("resolving project %s: %w", projectFlag, err)
		}
		ws.project = abs
	default:
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
		if root, ok := userdata.FindProjectRoot(cwd); ok {
			ws.project = root
		}
	}
	return ws, nil
}

func (ws *workspace) globalScope() string {
	return userdata.GetGlobalScopeDir()
}

func (ws *workspace) projectScope() string {
	if ws.project == "" {
		return ""
	}
	return userdata.GetProjectScopeDir(ws.project)
}

// scope is the manifest that mutating commands edit: the project's when
// there is one, the global one otherwise.
func (ws *workspace) scope() string {
	if s := ws.projectScope(); s != "" {
		return s
	}
	return ws.globalScope()
}

func (ws *workspace) scopeName() string {
	if ws.project != "" {
		return string(merge.ScopeProject)
	}
	return string(merge.ScopeGlobal)
}

// manifestPaths lists the manifest files that feed the merged view.
func (ws *workspace) manifestPaths() []string {
	paths := []string{manifest.Path(ws.globalScope())}
	if s := ws.projectScope(); s != "" {
		paths = append(paths, manifest.Path(s))
	}
	return paths
}

// merged loads both scopes. Unreadable manifests are logged and skipped.
func (ws *workspace) merged() *merge.MergedConfig {
	global := manifest.Load(ws.globalScope())
	var project *manifest.Manifest
	if s := ws.projectScope(); s != "" {
		project = manifest.Load(s)
	}
	return merge.MergeConfigs(global, project)
}

func (ws *workspace) lifecycle() *lifecycle.Manager {
	return lifecycle.New(lifecycle.Options{
		ScopeDir:  ws.scope(),
		Home:      ws.userHome,
		SkillsDir: ws.skillsDir,
	})
}

type syncFlags struct {
	backup        bool
	removeOrphans bool
}

func (ws *workspace) syncer(f syncFlags) (*syncer.Syncer, error) {
	env, err := userdata.LoadEnv(config.EnvFile())
	if err != nil {
		return nil, err
	}
	return syncer.New(syncer.Options{
		Home:          ws.userHome,
		SkillsDir:     ws.skillsDir,
		Env:           env,
		Backup:        f.backup,
		RemoveOrphans: f.removeOrphans,
	}), nil
}

// tools picks the tools a command targets: explicit flags first, then the
// configured default list, then every tool installed under the user home.
func (ws *workspace) tools(flagged []string) ([]integrations.ToolID, error) {
	names := flagged
	if len(names) == 0 {
		names = config.Tools()
	}
	if len(names) == 0 {
		return integrations.Installed(ws.userHome), nil
	}
	return parseTools(names)
}

func parseTools(names []string) ([]integrations.ToolID, error) {
	ids := make([]integrations.ToolID, 0, len(names))
	for _, n := range names {
		id, ok := integrations.ParseToolID(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", integrations.ErrUnsupportedTool, n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseType converts an optional --type value.
func parseType(s string) (manifest.Section, error) {
	if s == "" {
		return "", nil
	}
	return manifest.ParseSection(s)
}
