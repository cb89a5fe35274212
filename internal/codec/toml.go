package codec

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// tomlCodec works line by line: every table whose header starts with the
// managed key path belongs to mycelium and is rewritten, everything else is
// kept as opaque text.
type tomlCodec struct {
	path []string
}

func (c tomlCodec) Render(servers Servers) ([]byte, error) {
	return []byte(renderTOMLServers(c.path, servers)), nil
}

func (c tomlCodec) Inject(existing []byte, servers Servers) ([]byte, error) {
	kept := stripTOMLTables(string(existing), c.path)
	kept = strings.TrimRight(kept, "\n")

	block := renderTOMLServers(c.path, servers)
	var b strings.Builder
	b.WriteString(kept)
	if kept != "" {
		b.WriteString("\n")
		if block != "" {
			b.WriteString("\n")
		}
	}
	b.WriteString(block)
	return []byte(b.String()), nil
}

func (c tomlCodec) Remove(existing []byte, name string) ([]byte, bool, error) {
	content := string(existing)
	kept := stripTOMLTables(content, append(append([]string{}, c.path...), name))
	if kept == content {
		return existing, false, nil
	}
	kept = strings.TrimRight(kept, "\n")
	if kept != "" {
		kept += "\n"
	}
	return []byte(kept), true, nil
}

// stripTOMLTables drops every table under prefix, header and body.
func stripTOMLTables(content string, prefix []string) string {
	var out []string
	inManaged := false
	inMultiline := ""
	depth := 0

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		header := false
		if inMultiline == "" && depth == 0 {
			if segs, ok := parseTOMLHeader(trimmed); ok {
				header = true
				inManaged = hasPrefix(segs, prefix)
			}
		}
		if inMultiline == "" && !header {
			depth = arrayDepth(trimmed, depth)
		}
		inMultiline = trackMultiline(trimmed, inMultiline)

		if !inManaged {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// trackMultiline returns the open multi-line string delimiter after line,
// or "" when none is open.
func trackMultiline(line, open string) string {
	for _, delim := range []string{`"""`, `'''`} {
		if open != "" && open != delim {
			continue
		}
		if strings.Count(line, delim)%2 == 1 {
			if open == delim {
				return ""
			}
			return delim
		}
	}
	return open
}

// arrayDepth returns how many value arrays are still open after line.
// Brackets inside strings and comments do not count; a line that opens a
// multi-line string stops the scan.
func arrayDepth(line string, depth int) int {
	for i := 0; i < len(line); i++ {
		switch ch := line[i]; ch {
		case '#':
			return depth
		case '"', '\'':
			delim := strings.Repeat(string(ch), 3)
			if strings.HasPrefix(line[i:], delim) {
				return depth
			}
			j := i + 1
			for ; j < len(line) && line[j] != ch; j++ {
				if ch == '"' && line[j] == '\\' {
					j++
				}
			}
			if j >= len(line) {
				return depth
			}
			i = j
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth
}

// parseTOMLHeader splits a [table] or [[array]] header into key segments.
func parseTOMLHeader(line string) ([]string, bool) {
	if !strings.HasPrefix(line, "[") {
		return nil, false
	}
	inner := strings.TrimPrefix(line, "[")
	array := strings.HasPrefix(inner, "[")
	if array {
		inner = inner[1:]
	}

	var segs []string
	var cur strings.Builder
	quote := byte(0)
	for i := 0; i < len(inner); i++ {
		ch := inner[i]
		switch {
		case quote != 0:
			if ch == '\\' && quote == '"' && i+1 < len(inner) {
				i++
				cur.WriteByte(inner[i])
			} else if ch == quote {
				quote = 0
			} else {
				cur.WriteByte(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '.':
			segs = append(segs, strings.TrimSpace(cur.String()))
			cur.Reset()
		case ch == ']':
			segs = append(segs, strings.TrimSpace(cur.String()))
			rest := inner[i+1:]
			if array {
				if !strings.HasPrefix(rest, "]") {
					return nil, false
				}
				rest = rest[1:]
			}
			if rest = strings.TrimSpace(rest); rest != "" && !strings.HasPrefix(rest, "#") {
				return nil, false
			}
			return segs, true
		default:
			cur.WriteByte(ch)
		}
	}
	return nil, false
}

func hasPrefix(segs, prefix []string) bool {
	return len(segs) >= len(prefix) && slices.Equal(segs[:len(prefix)], prefix)
}

// renderTOMLServers writes one table per server, plus an env sub-table.
func renderTOMLServers(path []string, servers Servers) string {
	if len(servers) == 0 {
		return ""
	}
	base := make([]string, len(path))
	for i, p := range path {
		base[i] = tomlKey(p)
	}
	prefix := strings.Join(base, ".")

	var b strings.Builder
	for i, name := range servers.Names() {
		entry := servers[name]
		if i > 0 {
			b.WriteString("\n")
		}
		header := prefix + "." + tomlString(name)
		fmt.Fprintf(&b, "[%s]\n", header)
		fmt.Fprintf(&b, "command = %s\n", tomlString(entry.Command))
		if len(entry.Args) > 0 {
			quoted := make([]string, len(entry.Args))
			for j, a := range entry.Args {
				quoted[j] = tomlString(a)
			}
			fmt.Fprintf(&b, "args = [%s]\n", strings.Join(quoted, ", "))
		}
		if len(entry.Env) > 0 {
			fmt.Fprintf(&b, "\n[%s.env]\n", header)
			keys := make([]string, 0, len(entry.Env))
			for k := range entry.Env {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "%s = %s\n", tomlKey(k), tomlString(entry.Env[k]))
			}
		}
	}
	return b.String()
}

var bareKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func tomlKey(k string) string {
	if bareKey.MatchString(k) {
		return k
	}
	return tomlString(k)
}

// tomlString renders s as a TOML basic string.
func tomlString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
