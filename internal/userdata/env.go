package userdata

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// EnvEntry is one KEY=VALUE line of an env file.
type EnvEntry struct {
	Key   string
	Value string
	Line  int
}

// EnvLineError describes a line of an env file that is not KEY=VALUE.
type EnvLineError struct {
	Path string
	Line int
	Text string
}

func (e *EnvLineError) Error() string {
	return fmt.Sprintf("%s:%d: expected KEY=VALUE, got %q", e.Path, e.Line, e.Text)
}

// ParseEnvFile reads a .env file. Blank lines and # comments are skipped;
// an optional "export " prefix and matching surrounding quotes are
// stripped. Malformed lines do not stop parsing: the valid entries are
// returned together with an error joining one *EnvLineError per bad line.
func ParseEnvFile(path string) ([]EnvEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening env file %s: %w", path, err)
	}
	defer f.Close()

	var entries []EnvEntry
	var bad []error
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			bad = append(bad, &EnvLineError{Path: path, Line: n, Text: line})
			continue
		}
		entries = append(entries, EnvEntry{Key: key, Value: unquote(strings.TrimSpace(value)), Line: n})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return entries, errors.Join(bad...)
}

// LoadEnv builds the substitution map handed to the codecs: values from
// the .env file at path, overlaid by the process environment. A missing
// file and malformed lines are not errors; the lines are skipped.
func LoadEnv(path string) (map[string]string, error) {
	env := make(map[string]string)

	if path != "" {
		entries, err := ParseEnvFile(path)
		var lineErr *EnvLineError
		if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &lineErr) {
			return nil, err
		}
		for _, e := range entries {
			env[e.Key] = e.Value
		}
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env, nil
}

// MissingRefs returns the names in refs that env does not define.
func MissingRefs(refs []string, env map[string]string) []string {
	var missing []string
	for _, r := range refs {
		if _, ok := env[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

var sensitiveKeyParts = []string{"TOKEN", "SECRET", "PASSWORD", "KEY", "CREDENTIAL", "AUTH"}

// RedactValue masks value when key looks like it names a secret. Values
// of four or more characters keep their first four.
func RedactValue(key, value string) string {
	upper := strings.ToUpper(key)
	sensitive := false
	for _, part := range sensitiveKeyParts {
		if strings.Contains(upper, part) {
			sensitive = true
			break
		}
	}
	switch {
	case !sensitive:
		return value
	case len(value) < 4:
		return "***"
	default:
		return value[:4] + "***"
	}
}

// editorCommand returns the argv used to edit files. $EDITOR may carry
// arguments, e.g. "code --wait".
func editorCommand() []string {
	if fields := strings.Fields(os.Getenv("EDITOR")); len(fields) > 0 {
		return fields
	}
	if runtime.GOOS == "windows" {
		return []string{"notepad"}
	}
	return []string{"vi"}
}

// OpenEditor opens path in the user's editor attached to the terminal.
func OpenEditor(path string) error {
	argv := append(editorCommand(), path)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running editor %s: %w", argv[0], err)
	}
	return nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
