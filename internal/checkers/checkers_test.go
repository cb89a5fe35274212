package checkers

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestJSONPathEquals(t *testing.T) {
	c := qt.New(t)
	doc := `{"mcpServers":{"pg":{"command":"npx","args":["-y","pg"]}}}`

	c.Assert(doc, JSONPathEquals("$.mcpServers.pg.command"), "npx")
	c.Assert([]byte(doc), JSONPathEquals("$.mcpServers.pg.args[1]"), "pg")
	c.Assert(doc, qt.Not(JSONPathEquals("$.mcpServers.pg.command")), "node")
}

func TestJSONPathEquals_Errors(t *testing.T) {
	c := qt.New(t)
	checker := JSONPathEquals("$.a")
	note := func(string, any) {}

	err := checker.Check(42, []any{"x"}, note)
	c.Assert(qt.IsBadCheck(err), qt.IsTrue)

	err = checker.Check("{", []any{"x"}, note)
	c.Assert(err, qt.ErrorMatches, "invalid JSON: .*")

	err = checker.Check(`{"b":1}`, []any{"x"}, note)
	c.Assert(err, qt.IsNotNil)
}
