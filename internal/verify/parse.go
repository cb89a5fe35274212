package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"
	"github.com/yalp/jsonpath"
	"go.yaml.in/yaml/v3"

	"github.com/mycelium-labs/mycelium/internal/integrations"
)

const cacheSize = 64

// parsed is a decoded config file. raw is kept for header matching.
type parsed struct {
	doc any
	raw string
	err error
}

type cacheKey struct {
	path  string
	mtime int64
	size  int64
}

// configCache memoizes parsed configs by path, mtime and size so a
// VerifyAll pass parses each tool file once.
type configCache struct {
	lru *lru.Cache[cacheKey, *parsed]
}

func newConfigCache() *configCache {
	c, _ := lru.New[cacheKey, *parsed](cacheSize)
	return &configCache{lru: c}
}

// load returns nil when the file does not exist.
func (c *configCache) load(path string, format integrations.Format) (*parsed, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	key := cacheKey{path: path, mtime: info.ModTime().UnixNano(), size: info.Size()}
	if p, ok := c.lru.Get(key); ok {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p := &parsed{raw: string(data)}
	p.doc, p.err = decode(data, format)
	c.lru.Add(key, p)
	return p, nil
}

func decode(data []byte, format integrations.Format) (any, error) {
	var doc any
	switch format {
	case integrations.FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case integrations.FormatJSONC:
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(std, &doc); err != nil {
			return nil, err
		}
	case integrations.FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case integrations.FormatTOML:
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		doc = m
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return doc, nil
}

// hasServer reports whether name is a key of the object at path in doc.
func hasServer(doc any, path []string, name string) bool {
	if len(path) == 0 {
		return false
	}
	v, err := jsonpath.Read(doc, "$."+strings.Join(path, "."))
	if err != nil {
		return false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[name]
	return ok
}

// tomlAliases are the top-level tables other writers have used for MCP
// servers in TOML configs.
var tomlAliases = []string{"mcp.servers", "mcpServers", "mcp_servers"}

// tomlHeaderMentions reports whether raw has a table header for name under
// the managed key or one of the known aliases, e.g. [mcpServers.pg] or
// [mcp.servers."pg".env].
func tomlHeaderMentions(raw, key, name string) bool {
	prefixes := append([]string{key}, tomlAliases...)
	quotedName := regexp.QuoteMeta(name)
	for _, p := range prefixes {
		segs := strings.Split(p, ".")
		for i, s := range segs {
			segs[i] = `"?` + regexp.QuoteMeta(s) + `"?`
		}
		pattern := `(?m)^\s*\[\s*` + strings.Join(segs, `\s*\.\s*`) +
			`\s*\.\s*(?:"` + quotedName + `"|'` + quotedName + `'|` + quotedName + `)\s*[\].]`
		if regexp.MustCompile(pattern).MatchString(raw) {
			return true
		}
	}
	return false
}
