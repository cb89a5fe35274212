package codec

import (
	"bytes"
	"fmt"

	"go.yaml.in/yaml/v3"
)

// yamlCodec edits the yaml.Node tree so comments and key order outside the
// managed subtree are kept.
type yamlCodec struct {
	path []string
}

func (c yamlCodec) Render(servers Servers) ([]byte, error) {
	return c.Inject(nil, servers)
}

func (c yamlCodec) Inject(existing []byte, servers Servers) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(existing, &doc); err != nil || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mappingNode()}}
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		doc.Content[0] = mappingNode()
	}

	cur := doc.Content[0]
	for _, key := range c.path[:len(c.path)-1] {
		next := mapValue(cur, key)
		if next.Kind != yaml.MappingNode {
			*next = *mappingNode()
		}
		cur = next
	}

	var value yaml.Node
	if err := value.Encode(servers); err != nil {
		return nil, fmt.Errorf("encoding servers: %w", err)
	}
	*mapValue(cur, c.path[len(c.path)-1]) = value

	return encodeYAML(&doc)
}

func (c yamlCodec) Remove(existing []byte, name string) ([]byte, bool, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(existing, &doc); err != nil || len(doc.Content) == 0 {
		return existing, false, nil
	}
	cur := doc.Content[0]
	for _, key := range c.path {
		cur = lookup(cur, key)
		if cur == nil {
			return existing, false, nil
		}
	}
	if cur.Kind != yaml.MappingNode {
		return existing, false, nil
	}
	for i := 0; i+1 < len(cur.Content); i += 2 {
		if cur.Content[i].Value == name {
			cur.Content = append(cur.Content[:i], cur.Content[i+2:]...)
			out, err := encodeYAML(&doc)
			if err != nil {
				return nil, false, err
			}
			return out, true, nil
		}
	}
	return existing, false, nil
}

func encodeYAML(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// lookup returns the value for key in mapping m, or nil.
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// mapValue returns the value node for key in mapping m, appending an empty
// mapping entry when the key is missing.
func mapValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	v := mappingNode()
	m.Content = append(m.Content, k, v)
	return v
}
