package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type jsonCodec struct {
	path []string
}

func (c jsonCodec) Render(servers Servers) ([]byte, error) {
	return c.Inject(nil, servers)
}

func (c jsonCodec) Inject(existing []byte, servers Servers) ([]byte, error) {
	doc := decodeJSONObject(existing)
	setPath(doc, c.path, servers)
	return encodeJSON(doc)
}

func (c jsonCodec) Remove(existing []byte, name string) ([]byte, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(existing))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return existing, false, nil
	}
	cur := doc
	for _, key := range c.path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return existing, false, nil
		}
		cur = next
	}
	if _, ok := cur[name]; !ok {
		return existing, false, nil
	}
	delete(cur, name)
	out, err := encodeJSON(doc)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// decodeJSONObject parses a JSON object, keeping numbers exact. Anything
// that is not an object yields an empty map.
func decodeJSONObject(data []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return make(map[string]any)
	}
	return m
}

// setPath stores value at the nested key path, replacing any non-object
// intermediates with objects.
func setPath(doc map[string]any, path []string, value any) {
	cur := doc
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}
