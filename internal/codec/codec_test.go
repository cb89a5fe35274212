package codec

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"
	"go.yaml.in/yaml/v3"

	"github.com/mycelium-labs/mycelium/internal/integrations"
)

var sample = Servers{
	"pg": {
		Command: "npx",
		Args:    []string{"-y", "server-postgres"},
		Env:     map[string]string{"DATABASE_URL": "postgres://x"},
	},
	"whark": {Command: "whark"},
}

func codecFor(t *testing.T, id integrations.ToolID) Codec {
	t.Helper()
	d, err := integrations.Lookup(id)
	if err != nil {
		t.Fatal(err)
	}
	c, err := For(*d.MCP)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFor_UnknownFormat(t *testing.T) {
	_, err := For(integrations.MCPDescriptor{Format: "ini", Key: "x"})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestJSON_InjectPreservesForeignKeys(t *testing.T) {
	existing := []byte(`{"theme":"dark","numStartups":12345678901234,"mcpServers":{"old":{"command":"gone"}},"projects":{"a":{"x":1}}}`)

	out, err := codecFor(t, integrations.ClaudeCode).Inject(existing, sample)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if doc["theme"] != "dark" {
		t.Errorf("theme lost: %v", doc["theme"])
	}
	if !strings.Contains(string(out), "12345678901234") {
		t.Errorf("large number not preserved exactly:\n%s", out)
	}
	if _, ok := doc["projects"].(map[string]any)["a"]; !ok {
		t.Error("nested foreign key lost")
	}
	servers := doc["mcpServers"].(map[string]any)
	if _, ok := servers["old"]; ok {
		t.Error("stale managed entry survived")
	}
	whark := servers["whark"].(map[string]any)
	if _, ok := whark["args"]; ok {
		t.Error("empty args should be omitted")
	}
	if _, ok := whark["env"]; ok {
		t.Error("empty env should be omitted")
	}
}

func TestJSON_InvalidExistingTreatedAsEmpty(t *testing.T) {
	out, err := codecFor(t, integrations.GeminiCLI).Inject([]byte("{not json"), sample)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	var doc struct {
		MCPServers Servers `json:"mcpServers"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sample, doc.MCPServers); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestJSON_EntriesShape(t *testing.T) {
	existing := []byte(`{"mcp":{"enabled":true},"gateway":{"port":8080}}`)
	out, err := codecFor(t, integrations.OpenClaw).Inject(existing, sample)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}

	var doc struct {
		MCP struct {
			Enabled bool    `json:"enabled"`
			Entries Servers `json:"entries"`
		} `json:"mcp"`
		Gateway map[string]int `json:"gateway"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if !doc.MCP.Enabled || doc.Gateway["port"] != 8080 {
		t.Errorf("foreign keys lost:\n%s", out)
	}
	if len(doc.MCP.Entries) != 2 {
		t.Errorf("entries = %v", doc.MCP.Entries)
	}
}

func TestJSONC_KeepsComments(t *testing.T) {
	existing := []byte(`{
  // user theme
  "theme": "tokyonight",
  "mcp": {
    "old": {"command": "gone"}, // trailing comma allowed
  },
}
`)
	out, err := codecFor(t, integrations.OpenCode).Inject(existing, sample)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if !strings.Contains(string(out), "// user theme") {
		t.Errorf("comment outside managed subtree lost:\n%s", out)
	}

	std, err := hujson.Standardize(out)
	if err != nil {
		t.Fatalf("output is not valid JSONC: %v\n%s", err, out)
	}
	var doc struct {
		Theme string  `json:"theme"`
		MCP   Servers `json:"mcp"`
	}
	if err := json.Unmarshal(std, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Theme != "tokyonight" {
		t.Errorf("theme = %q", doc.Theme)
	}
	if diff := cmp.Diff(sample, doc.MCP); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONC_EmptyExisting(t *testing.T) {
	out, err := codecFor(t, integrations.OpenCode).Render(sample)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	std, err := hujson.Standardize(out)
	if err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	var doc map[string]Servers
	if err := json.Unmarshal(std, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc["mcp"]) != 2 {
		t.Errorf("mcp = %v", doc["mcp"])
	}
}

func TestYAML_InjectPreservesForeignKeys(t *testing.T) {
	existing := []byte(`# continue config
name: my-assistant
models:
  - name: gpt
mcp:
  timeout: 30 # seconds
  servers:
    old:
      command: gone
`)
	out, err := codecFor(t, integrations.Continue).Inject(existing, sample)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if !strings.Contains(string(out), "# continue config") {
		t.Errorf("head comment lost:\n%s", out)
	}

	var doc struct {
		Name   string           `yaml:"name"`
		Models []map[string]any `yaml:"models"`
		MCP    struct {
			Timeout int     `yaml:"timeout"`
			Servers Servers `yaml:"servers"`
		} `yaml:"mcp"`
	}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if doc.Name != "my-assistant" || len(doc.Models) != 1 || doc.MCP.Timeout != 30 {
		t.Errorf("foreign keys lost:\n%s", out)
	}
	if diff := cmp.Diff(sample, doc.MCP.Servers); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestYAML_ScalarRootReplaced(t *testing.T) {
	out, err := codecFor(t, integrations.Continue).Inject([]byte("just a string\n"), sample)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	var doc map[string]map[string]Servers
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc["mcp"]["servers"]) != 2 {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestTOML_InjectReplacesManagedTables(t *testing.T) {
	existing := []byte(`model = "o3"

[mcp]
timeout = 5

[mcp.servers."old"]
command = "gone"

[mcp.servers."old".env]
X = "1"

[profiles.fast]
model = "o4-mini"
`)
	out, err := codecFor(t, integrations.Codex).Inject(existing, sample)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}

	var doc struct {
		Model string `toml:"model"`
		MCP   struct {
			Timeout int     `toml:"timeout"`
			Servers Servers `toml:"servers"`
		} `toml:"mcp"`
		Profiles map[string]map[string]string `toml:"profiles"`
	}
	if err := toml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not TOML: %v\n%s", err, out)
	}
	if doc.Model != "o3" || doc.MCP.Timeout != 5 || doc.Profiles["fast"]["model"] != "o4-mini" {
		t.Errorf("foreign content lost:\n%s", out)
	}
	if diff := cmp.Diff(sample, doc.MCP.Servers); diff != "" {
		t.Errorf("servers mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(string(out), "gone") {
		t.Errorf("stale managed table survived:\n%s", out)
	}
	if !strings.Contains(string(out), `[mcp.servers."pg".env]`) {
		t.Errorf("env sub-table not rendered:\n%s", out)
	}
}

func TestTOML_Idempotent(t *testing.T) {
	c := codecFor(t, integrations.Codex)
	first, err := c.Inject([]byte("model = \"o3\"\n"), sample)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Inject(first, sample)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Errorf("second inject changed output (-first +second):\n%s", diff)
	}
}

func TestTOML_EmptyServersRemovesBlock(t *testing.T) {
	existing := []byte("model = \"o3\"\n\n[mcp.servers.pg]\ncommand = \"x\"\n")
	out, err := codecFor(t, integrations.Codex).Inject(existing, Servers{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "model = \"o3\"\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestTOML_MultilineStringIsOpaque(t *testing.T) {
	existing := []byte("instructions = \"\"\"\n[mcp.servers.fake]\n\"\"\"\n")
	out, err := codecFor(t, integrations.Codex).Inject(existing, Servers{"a": {Command: "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "[mcp.servers.fake]") {
		t.Errorf("header-like text inside a multi-line string was stripped:\n%s", out)
	}
}

func TestTOML_NestedArrayRowsStayInTable(t *testing.T) {
	existing := []byte(`model = "o3"

[mcp.servers.old]
command = "gone"
matrix = [
  [1, 2],
  [3, 4],
]
label = "x]"

[profiles.fast]
model = "o4-mini"
`)
	out, err := codecFor(t, integrations.Codex).Inject(existing, Servers{"pg": {Command: "pg"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, stale := range []string{"gone", "[1, 2]", "[3, 4]", "label"} {
		if strings.Contains(string(out), stale) {
			t.Errorf("%q from the managed table leaked:\n%s", stale, out)
		}
	}
	var doc map[string]any
	if err := toml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not TOML: %v\n%s", err, out)
	}
	if doc["model"] != "o3" {
		t.Errorf("model = %v", doc["model"])
	}
}

func TestArrayDepth(t *testing.T) {
	tests := []struct {
		line  string
		depth int
		want  int
	}{
		{`matrix = [`, 0, 1},
		{`[1, 2],`, 1, 1},
		{`]`, 1, 0},
		{`args = ["a", "b"]`, 0, 0},
		{`label = "[" # [`, 0, 0},
		{`path = 'C:\[x'`, 0, 0},
		{`text = """[`, 0, 0},
	}
	for _, tt := range tests {
		if got := arrayDepth(tt.line, tt.depth); got != tt.want {
			t.Errorf("arrayDepth(%q, %d) = %d, want %d", tt.line, tt.depth, got, tt.want)
		}
	}
}

func TestRemove(t *testing.T) {
	tests := []struct {
		tool     integrations.ToolID
		existing string
		keep     string
	}{
		{integrations.ClaudeCode, `{"theme":"dark","mcpServers":{"pg":{"command":"pg"},"gh":{"command":"gh"}}}`, `"theme"`},
		{integrations.OpenCode, "{\n  // mine\n  \"mcp\": {\"pg\": {\"command\": \"pg\"}, \"gh\": {\"command\": \"gh\"}}\n}\n", "// mine"},
		{integrations.OpenClaw, `{"mcp":{"entries":{"pg":{"command":"pg"},"gh":{"command":"gh"}}}}`, `"entries"`},
		{integrations.Continue, "name: cfg\nmcp:\n  servers:\n    pg:\n      command: pg\n    gh:\n      command: gh\n", "name: cfg"},
		{integrations.Codex, "model = \"o3\"\n\n[mcp.servers.pg]\ncommand = \"pg\"\n\n[mcp.servers.pg.env]\nA = \"1\"\n\n[mcp.servers.gh]\ncommand = \"gh\"\n", `model = "o3"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			c := codecFor(t, tt.tool)
			out, removed, err := c.Remove([]byte(tt.existing), "pg")
			if err != nil || !removed {
				t.Fatalf("Remove = %v, %v", removed, err)
			}
			text := string(out)
			if strings.Contains(text, `"pg"`) || strings.Contains(text, "pg:") || strings.Contains(text, "servers.pg") {
				t.Errorf("pg still present:\n%s", text)
			}
			if !strings.Contains(text, "gh") || !strings.Contains(text, tt.keep) {
				t.Errorf("unrelated content lost:\n%s", text)
			}

			again, removed, err := c.Remove(out, "pg")
			if err != nil || removed || string(again) != text {
				t.Errorf("second Remove = %v, %v", removed, err)
			}
		})
	}
}

func TestRemove_UnreadableIsNoop(t *testing.T) {
	in := []byte(`{"mcpServers":`)
	out, removed, err := codecFor(t, integrations.ClaudeCode).Remove(in, "pg")
	if err != nil || removed || string(out) != string(in) {
		t.Errorf("Remove = %q, %v, %v", out, removed, err)
	}
}

func TestTOMLString_Escapes(t *testing.T) {
	got := tomlString("a\"b\\c\nd")
	if got != `"a\"b\\c\nd"` {
		t.Errorf("tomlString = %s", got)
	}
	var doc map[string]string
	if err := toml.Unmarshal([]byte("k = "+got), &doc); err != nil || doc["k"] != "a\"b\\c\nd" {
		t.Errorf("escaped string does not round-trip: %v %q", err, doc["k"])
	}
}

func TestParseTOMLHeader(t *testing.T) {
	tests := []struct {
		line string
		want []string
		ok   bool
	}{
		{`[mcp.servers."pg"]`, []string{"mcp", "servers", "pg"}, true},
		{`[ mcp . servers . pg ]`, []string{"mcp", "servers", "pg"}, true},
		{`[mcp.servers."a.b".env]`, []string{"mcp", "servers", "a.b", "env"}, true},
		{`[[profiles]]`, []string{"profiles"}, true},
		{`[mcp.servers.pg] # managed`, []string{"mcp", "servers", "pg"}, true},
		{`[1, 2],`, nil, false},
		{`["a", "b"]]`, nil, false},
		{`model = "x"`, nil, false},
	}
	for _, tt := range tests {
		got, ok := parseTOMLHeader(tt.line)
		if ok != tt.ok || !cmp.Equal(got, tt.want) {
			t.Errorf("parseTOMLHeader(%q) = %v, %v", tt.line, got, ok)
		}
	}
}

func TestSetValue(t *testing.T) {
	in := []byte("{\n  // keep me\n  \"model\": \"opus\"\n}\n")
	out, err := SetValue(in, []string{"enabledPlugins", "docs@market"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "// keep me") {
		t.Errorf("comment lost:\n%s", out)
	}

	std, err := hujson.Standardize(out)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(std, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["model"] != "opus" {
		t.Errorf("model = %v", doc["model"])
	}
	plugins, _ := doc["enabledPlugins"].(map[string]any)
	if v, ok := plugins["docs@market"]; !ok || v != false {
		t.Errorf("enabledPlugins = %v", doc["enabledPlugins"])
	}

	out, err = SetValue(out, []string{"enabledPlugins", "docs@market"}, true)
	if err != nil {
		t.Fatal(err)
	}
	std, _ = hujson.Standardize(out)
	doc = nil
	if err := json.Unmarshal(std, &doc); err != nil {
		t.Fatal(err)
	}
	if v := doc["enabledPlugins"].(map[string]any)["docs@market"]; v != true {
		t.Errorf("value not replaced: %v", v)
	}

	if _, err := SetValue(nil, nil, 1); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestUpdateValue(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"object with comment", "{\n  // keep\n  \"model\": \"opus\"\n}\n", false},
		{"missing brace", `{"model":"opus","permissions":{"allow":["Bash"]}`, true},
		{"empty", "", true},
		{"array root", `["a"]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := UpdateValue([]byte(tt.in), []string{"enabledPlugins", "docs@market"}, true)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got:\n%s", out)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(out), "// keep") || !strings.Contains(string(out), "docs@market") {
				t.Errorf("unexpected output:\n%s", out)
			}
		})
	}
}
