package syncer

import (
	"context"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/mycelium-labs/mycelium/internal/checkers"
	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/manifest"
)

func TestSyncTool_JSONShapes(t *testing.T) {
	merged := mergedOf(map[manifest.Section]map[string]*manifest.Item{
		manifest.SectionMCPs: {
			"pg": {Command: "npx", Args: []string{"-y", "${DB_URL}"}},
			"gh": {Command: "gh-mcp", Tools: []string{string(integrations.GeminiCLI)}},
		},
	})

	tests := []struct {
		tool     integrations.ToolID
		prefix   string
		ghExists bool
	}{
		{integrations.GeminiCLI, "$.mcpServers", true},
		{integrations.OpenClaw, "$.mcp.entries", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			c := qt.New(t)
			f := newFixture(t)

			res := f.syncer.SyncTool(context.Background(), tt.tool, merged)
			c.Assert(res.Success, qt.IsTrue, qt.Commentf("%+v", res))

			data, err := os.ReadFile(res.ConfigPath)
			c.Assert(err, qt.IsNil)
			c.Assert(data, checkers.JSONPathEquals(tt.prefix+".pg.command"), "npx")
			c.Assert(data, checkers.JSONPathEquals(tt.prefix+".pg.args[1]"), "postgres://db")
			if tt.ghExists {
				c.Assert(data, checkers.JSONPathEquals(tt.prefix+".gh.command"), "gh-mcp")
			}
		})
	}
}
