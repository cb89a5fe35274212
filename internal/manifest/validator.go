package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/manifest.schema.json
var schemaBytes []byte

const schemaURL = "manifest.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
	printer    = message.NewPrinter(language.English)
)

// ValidationResult is the outcome of validating a manifest.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue is one problem found in a manifest.
type ValidationIssue struct {
	Path    string // JSON pointer into the document, e.g. /mcps/pg/command
	Message string
	Keyword string // failing schema keyword, or the name of a semantic check
}

func (is ValidationIssue) String() string {
	if is.Path == "" {
		return is.Message
	}
	return is.Path + ": " + is.Message
}

// ValidationError is returned by Save when the serialized manifest does
// not satisfy the schema.
type ValidationError struct {
	Path   string
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("manifest %s is invalid: %s", e.Path, strings.Join(parts, "; "))
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			schemaErr = fmt.Errorf("decoding manifest schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("adding manifest schema: %w", err)
			return
		}
		if schema, err = c.Compile(schemaURL); err != nil {
			schemaErr = fmt.Errorf("compiling manifest schema: %w", err)
		}
	})
	return schema, schemaErr
}

// Validate checks raw manifest YAML against the embedded JSON schema. The
// error return is reserved for YAML that cannot be decoded at all; schema
// violations are reported in the result.
func Validate(data []byte) (*ValidationResult, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	// The validator wants encoding/json values (json.Number for numbers).
	jsonData, err := json.Marshal(jsonValue(doc))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}
	return &ValidationResult{Issues: schemaIssues(ve)}, nil
}

// ValidateFile validates the manifest at path: first against the schema,
// then, when the schema passes, with Check.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	result, err := Validate(data)
	if err != nil || !result.Valid {
		return result, err
	}
	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	if issues := Check(m); len(issues) > 0 {
		return &ValidationResult{Issues: issues}, nil
	}
	return result, nil
}

// Check reports problems the schema cannot express: cross references
// between items and plugin takeovers, contradictory tool lists and
// relative source paths.
func Check(m *Manifest) []ValidationIssue {
	var issues []ValidationIssue
	owners := make(map[string]bool)

	for _, s := range Sections {
		sec := m.Section(s)
		names := make([]string, 0, len(sec))
		for name := range sec {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			it := sec[name]
			ptr := "/" + string(s) + "/" + name
			if err := ValidateName(name); err != nil {
				issues = append(issues, ValidationIssue{Path: ptr, Message: err.Error(), Keyword: "name"})
			}
			if it.Path != "" && !filepath.IsAbs(it.Path) {
				issues = append(issues, ValidationIssue{Path: ptr + "/path", Message: "path must be absolute", Keyword: "path"})
			}
			for _, t := range it.Tools {
				if slices.Contains(it.ExcludeTools, t) {
					issues = append(issues, ValidationIssue{
						Path:    ptr + "/tools",
						Message: fmt.Sprintf("%s is both allowed and excluded", t),
						Keyword: "tools",
					})
				}
			}
			if it.PluginOrigin == nil {
				continue
			}
			id := it.PluginOrigin.PluginID
			if it.EffectiveState() != StateDeleted {
				owners[id] = true
			}
			if _, ok := m.TakenOverPlugins[id]; !ok {
				issues = append(issues, ValidationIssue{
					Path:    ptr + "/pluginOrigin",
					Message: fmt.Sprintf("plugin %s has no takeover record", id),
					Keyword: "pluginOrigin",
				})
			}
		}
	}

	ids := make([]string, 0, len(m.TakenOverPlugins))
	for id := range m.TakenOverPlugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !owners[id] {
			issues = append(issues, ValidationIssue{
				Path:    "/takenOverPlugins/" + id,
				Message: "takeover has no live items and should have been released",
				Keyword: "takenOverPlugins",
			})
		}
	}
	return issues
}

// schemaIssues flattens the error tree into its leaves, skipping
// composite keywords so each issue names the property that failed.
func schemaIssues(ve *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	seen := make(map[string]bool)

	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		for _, c := range e.Causes {
			walk(c)
		}
		if len(e.Causes) > 0 || e.ErrorKind == nil {
			return
		}
		kw := e.ErrorKind.KeywordPath()
		if len(kw) == 0 {
			return
		}
		keyword := kw[len(kw)-1]
		switch keyword {
		case "oneOf", "allOf", "$ref":
			return
		}

		is := ValidationIssue{Message: e.ErrorKind.LocalizedString(printer), Keyword: keyword}
		if len(e.InstanceLocation) > 0 {
			is.Path = "/" + strings.Join(e.InstanceLocation, "/")
		}
		key := is.Path + "|" + is.Keyword + "|" + is.Message
		if !seen[key] {
			seen[key] = true
			issues = append(issues, is)
		}
	}
	walk(ve)

	if len(issues) == 0 {
		return []ValidationIssue{{Message: ve.Error()}}
	}
	return issues
}

// jsonValue converts decoded YAML into values encoding/json accepts.
// Non-string keys (a skill named 2024) are stringified and timestamps
// rendered as RFC 3339.
func jsonValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = jsonValue(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[fmt.Sprint(k)] = jsonValue(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = jsonValue(v)
		}
		return out
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
