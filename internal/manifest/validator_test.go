package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		file      string
		valid     bool
		wantIssue string // a path expected among the issues
	}{
		{"valid-full.yaml", true, ""},
		{"valid-minimal.yaml", true, ""},
		{"invalid-bad-state.yaml", false, "/mcps/pg/state"},
		{"invalid-bad-name.yaml", false, ""},
		{"invalid-mcp-missing-command.yaml", false, ""},
		{"invalid-unknown-section.yaml", false, ""},
		{"invalid-missing-version.yaml", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			result, err := ValidateFile(testPath(tt.file))
			if err != nil {
				t.Fatalf("ValidateFile: %v", err)
			}
			if result.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v; issues: %v", result.Valid, tt.valid, result.Issues)
			}
			if !tt.valid && len(result.Issues) == 0 {
				t.Error("invalid result without issues")
			}
			if tt.wantIssue == "" {
				return
			}
			for _, is := range result.Issues {
				if is.Path == tt.wantIssue && is.Message != "" {
					return
				}
			}
			t.Errorf("no issue at %s in %+v", tt.wantIssue, result.Issues)
		})
	}
}

func TestValidateFile_Errors(t *testing.T) {
	for _, name := range []string{"invalid-not-yaml.yaml", "nonexistent.yaml"} {
		if _, err := ValidateFile(testPath(name)); err == nil {
			t.Errorf("ValidateFile(%s) succeeded, want error", name)
		}
	}
}

func TestValidateFile_RunsSemanticCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	data := `version: "1.0.0"
agents:
  reviewer:
    path: agents/reviewer.md
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid || len(result.Issues) != 1 || result.Issues[0].Path != "/agents/reviewer/path" {
		t.Errorf("result = %+v, want one relative path issue", result)
	}
}

func TestCheck(t *testing.T) {
	takeover := func() map[string]*PluginTakeover {
		return map[string]*PluginTakeover{"whark": {Version: "1.0.0"}}
	}
	owned := func(state State) *Item {
		return &Item{Command: "whark-mcp", State: state, PluginOrigin: &PluginOrigin{PluginID: "whark"}}
	}

	tests := []struct {
		name     string
		build    func(m *Manifest)
		keywords []string
	}{
		{
			name: "clean",
			build: func(m *Manifest) {
				m.Set(SectionMCPs, "pg", &Item{Command: "npx", Tools: []string{"codex"}})
				m.Set(SectionSkills, "review", &Item{Path: "/skills/review"})
			},
		},
		{
			name: "relative path",
			build: func(m *Manifest) {
				m.Set(SectionRules, "style", &Item{Path: "STYLE.md"})
			},
			keywords: []string{"path"},
		},
		{
			name: "allowed and excluded",
			build: func(m *Manifest) {
				m.Set(SectionMCPs, "pg", &Item{Command: "npx", Tools: []string{"codex"}, ExcludeTools: []string{"codex"}})
			},
			keywords: []string{"tools"},
		},
		{
			name: "owned item without takeover",
			build: func(m *Manifest) {
				m.Set(SectionMCPs, "whark", owned(""))
			},
			keywords: []string{"pluginOrigin"},
		},
		{
			name: "takeover with only deleted items",
			build: func(m *Manifest) {
				m.TakenOverPlugins = takeover()
				m.Set(SectionMCPs, "whark", owned(StateDeleted))
			},
			keywords: []string{"takenOverPlugins"},
		},
		{
			name: "takeover with a disabled item is live",
			build: func(m *Manifest) {
				m.TakenOverPlugins = takeover()
				m.Set(SectionMCPs, "whark", owned(StateDisabled))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			tt.build(m)
			issues := Check(m)
			var got []string
			for _, is := range issues {
				got = append(got, is.Keyword)
			}
			if strings.Join(got, ",") != strings.Join(tt.keywords, ",") {
				t.Errorf("Check keywords = %v, want %v (%+v)", got, tt.keywords, issues)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Path: "/p/manifest.yaml", Issues: []ValidationIssue{
		{Path: "/mcps/pg/command", Message: "missing"},
		{Message: "bad root"},
	}}
	want := "manifest /p/manifest.yaml is invalid: /mcps/pg/command: missing; bad root"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSchemaCompiles(t *testing.T) {
	sch, err := compiledSchema()
	if err != nil || sch == nil {
		t.Fatalf("compiledSchema() = %v, %v", sch, err)
	}
}
