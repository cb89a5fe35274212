// Package checkers provides quicktest checkers shared by package tests.
package checkers

import (
	"encoding/json"
	"fmt"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

type jsonPathEquals struct {
	path string
}

// JSONPathEquals returns a checker asserting that the JSON document given
// as got (string or []byte) holds want at the JSONPath expression path.
//
//	c.Assert(data, checkers.JSONPathEquals("$.mcpServers.pg.command"), "npx")
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathEquals{path: path}
}

func (c *jsonPathEquals) ArgNames() []string {
	return []string{"got", "want"}
}

func (c *jsonPathEquals) Check(got any, args []any, note func(key string, value any)) error {
	var data []byte
	switch v := got.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return qt.BadCheckf("got must be string or []byte, not %T", got)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	value, err := jsonpath.Read(doc, c.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.path, err)
	}
	note("value", value)
	return qt.Equals.Check(value, args, note)
}
