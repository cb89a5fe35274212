package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
)

// jsoncCodec edits JSON-with-comments documents through the hujson AST so
// comments and formatting outside the managed subtree survive.
type jsoncCodec struct {
	path []string
}

func (c jsoncCodec) Render(servers Servers) ([]byte, error) {
	return c.Inject(nil, servers)
}

func (c jsoncCodec) Inject(existing []byte, servers Servers) ([]byte, error) {
	return SetValue(existing, c.path, servers)
}

func (c jsoncCodec) Remove(existing []byte, name string) ([]byte, bool, error) {
	root, err := hujson.Parse(existing)
	if err != nil {
		return existing, false, nil
	}
	ptr := ""
	for _, key := range append(append([]string{}, c.path...), name) {
		ptr += "/" + escapePointer(key)
	}
	if root.Find(ptr) == nil {
		return existing, false, nil
	}
	if err := patch(&root, "remove", ptr, nil); err != nil {
		return nil, false, err
	}
	root.Format()
	out := root.Pack()
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, true, nil
}

// UpdateValue is SetValue for files mycelium does not own. A document that
// does not parse as an object is an error and is never replaced.
func UpdateValue(existing []byte, path []string, value any) ([]byte, error) {
	root, err := hujson.Parse(existing)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if _, ok := root.Value.(*hujson.Object); !ok {
		return nil, errors.New("top-level value is not an object")
	}
	return SetValue(existing, path, value)
}

// SetValue sets the value at path in a JSON or JSONC document, creating
// parent objects as needed. Comments and keys outside path are kept; an
// unparseable document is replaced by a fresh object.
func SetValue(existing []byte, path []string, value any) ([]byte, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty key path")
	}
	root, err := hujson.Parse(existing)
	if err != nil {
		root = hujson.Value{Value: &hujson.Object{}}
	}
	if _, ok := root.Value.(*hujson.Object); !ok {
		root = hujson.Value{Value: &hujson.Object{}}
	}

	// Make sure every parent on the path is an object.
	ptr := ""
	for _, key := range path[:len(path)-1] {
		ptr += "/" + escapePointer(key)
		v := root.Find(ptr)
		if v != nil {
			if _, ok := v.Value.(*hujson.Object); ok {
				continue
			}
		}
		if err := patch(&root, opFor(v), ptr, json.RawMessage("{}")); err != nil {
			return nil, err
		}
	}

	ptr += "/" + escapePointer(path[len(path)-1])
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ptr, err)
	}
	if err := patch(&root, opFor(root.Find(ptr)), ptr, raw); err != nil {
		return nil, err
	}

	root.Format()
	out := root.Pack()
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}

func opFor(existing *hujson.Value) string {
	if existing == nil {
		return "add"
	}
	return "replace"
}

func patch(root *hujson.Value, op, ptr string, value json.RawMessage) error {
	ops, err := json.Marshal([]map[string]any{{"op": op, "path": ptr, "value": value}})
	if err != nil {
		return fmt.Errorf("encoding patch: %w", err)
	}
	if err := root.Patch(ops); err != nil {
		return fmt.Errorf("patching %s: %w", ptr, err)
	}
	return nil
}

// escapePointer escapes a key for use in an RFC 6901 JSON pointer.
func escapePointer(key string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(key)
}
