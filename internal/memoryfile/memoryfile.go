// Package memoryfile maintains a managed block of memory items inside a
// tool's instruction file (CLAUDE.md, AGENTS.md, GEMINI.md). Text outside
// the block belongs to the user and is kept as is.
package memoryfile

import (
	"regexp"
	"strings"
)

const (
	BeginMarker = "<!-- mycelium:begin -->"
	EndMarker   = "<!-- mycelium:end -->"
)

// Entry is one memory item rendered into the block.
type Entry struct {
	Name    string
	Content string
}

var itemMarker = regexp.MustCompile(`<!-- mycelium:memory:([^ ]+) -->`)

func marker(name string) string {
	return "<!-- mycelium:memory:" + name + " -->"
}

// Render returns the managed block for entries, or "" when there are none.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(BeginMarker + "\n")
	for _, e := range entries {
		b.WriteString(marker(e.Name) + "\n")
		b.WriteString(strings.TrimRight(e.Content, "\n") + "\n\n")
	}
	b.WriteString(EndMarker + "\n")
	return b.String()
}

// Inject replaces the managed block in existing with one rendered from
// entries. The block keeps its position; a new block goes at the end. With
// no entries the block is removed.
func Inject(existing string, entries []Entry) string {
	before, after, found := cut(existing)
	block := Render(entries)

	if !found {
		if block == "" {
			return existing
		}
		trimmed := strings.TrimRight(existing, "\n")
		if trimmed == "" {
			return block
		}
		return trimmed + "\n\n" + block
	}

	if block == "" {
		rest := strings.TrimRight(before, "\n")
		tail := strings.TrimLeft(after, "\n")
		switch {
		case rest == "":
			return tail
		case tail == "":
			return rest + "\n"
		default:
			return rest + "\n\n" + tail
		}
	}
	return before + block + strings.TrimPrefix(after, "\n")
}

// cut splits content around the managed block. after starts right after
// the end marker.
func cut(content string) (before, after string, found bool) {
	start := strings.Index(content, BeginMarker)
	if start < 0 {
		return content, "", false
	}
	rel := strings.Index(content[start:], EndMarker)
	if rel < 0 {
		// An unterminated block runs to the end of the file.
		return content[:start], "", true
	}
	return content[:start], content[start+rel+len(EndMarker):], true
}

// Names lists the memory items present in the managed block.
func Names(content string) []string {
	_, _, found := cut(content)
	if !found {
		return nil
	}
	start := strings.Index(content, BeginMarker)
	block := content[start:]
	if end := strings.Index(block, EndMarker); end >= 0 {
		block = block[:end]
	}

	var names []string
	for _, m := range itemMarker.FindAllStringSubmatch(block, -1) {
		names = append(names, m[1])
	}
	return names
}

// Contains reports whether the managed block holds the named item.
func Contains(content, name string) bool {
	for _, n := range Names(content) {
		if n == name {
			return true
		}
	}
	return false
}

// Entries parses the items of the managed block back out of content.
func Entries(content string) []Entry {
	start := strings.Index(content, BeginMarker)
	if start < 0 {
		return nil
	}
	block := content[start+len(BeginMarker):]
	if end := strings.Index(block, EndMarker); end >= 0 {
		block = block[:end]
	}

	locs := itemMarker.FindAllStringSubmatchIndex(block, -1)
	entries := make([]Entry, 0, len(locs))
	for i, loc := range locs {
		end := len(block)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimPrefix(block[loc[1]:end], "\n")
		entries = append(entries, Entry{
			Name:    block[loc[2]:loc[3]],
			Content: strings.TrimRight(body, "\n"),
		})
	}
	return entries
}

// Remove drops the named item from the managed block. The second result
// is false when the item was not there.
func Remove(content, name string) (string, bool) {
	entries := Entries(content)
	kept := entries[:0:0]
	for _, e := range entries {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return content, false
	}
	return Inject(content, kept), true
}
