package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"

	"github.com/mycelium-labs/mycelium/internal/platform"
)

// FileName is the manifest file name inside a scope directory.
const FileName = "manifest.yaml"

const maxNameLength = 128

var (
	// ErrNotFound is returned by Read when the scope has no manifest.
	ErrNotFound = errors.New("manifest not found")
	// ErrUnsupportedVersion is returned when the manifest was written by an
	// incompatible (different major) version.
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
	// ErrItemNotFound is returned when no section holds the requested name.
	ErrItemNotFound = errors.New("item not found")
	// ErrAmbiguous is returned when a name exists in several sections and
	// no section was given.
	ErrAmbiguous = errors.New("exists in multiple sections, specify type")
	// ErrInvalidName is returned by ValidateName.
	ErrInvalidName = errors.New("invalid item name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@:-]*$`)

// Path returns the manifest path for a scope directory.
func Path(scopeDir string) string {
	return filepath.Join(scopeDir, FileName)
}

// Load reads the manifest for a scope. It returns nil when the file is
// absent or cannot be understood; unreadable files are logged.
func Load(scopeDir string) *Manifest {
	m, err := Read(scopeDir)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("ignoring unreadable manifest", "path", Path(scopeDir), "error", err)
		}
		return nil
	}
	return m
}

// Read is the strict form of Load. It returns ErrNotFound when the file is
// absent, ErrUnsupportedVersion for an incompatible version, and a wrapped
// parse error otherwise.
func Read(scopeDir string) (*Manifest, error) {
	path := Path(scopeDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes manifest YAML. path is only used in error messages.
func Parse(data []byte, path string) (*Manifest, error) {
	m := New()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
		}
	}
	if m.Version == "" {
		m.Version = CurrentVersion
	}
	if err := checkVersion(m.Version); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.normalize()
	return m, nil
}

// checkVersion accepts any 1.x manifest.
func checkVersion(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrUnsupportedVersion, v, err)
	}
	if ver.Major() != 1 {
		return fmt.Errorf("%w %q (this build reads 1.x)", ErrUnsupportedVersion, v)
	}
	return nil
}

// Marshal serializes a manifest to YAML with two-space indentation.
func Marshal(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Save serializes m, validates the result against the manifest schema and
// atomically replaces <scopeDir>/manifest.yaml. Nothing is written when
// validation fails.
func Save(scopeDir string, m *Manifest) error {
	if m.Version == "" {
		m.Version = CurrentVersion
	}
	path := Path(scopeDir)

	data, err := Marshal(m)
	if err != nil {
		return err
	}

	result, err := Validate(data)
	if err != nil {
		return fmt.Errorf("validating manifest %s: %w", path, err)
	}
	if !result.Valid {
		return &ValidationError{Path: path, Issues: result.Issues}
	}

	if err := platform.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// Match is one hit returned by FindItem.
type Match struct {
	Section Section
	Item    *Item
}

// FindItem returns every section holding name, in section order.
func FindItem(m *Manifest, name string) []Match {
	var matches []Match
	for _, s := range Sections {
		if it := m.Get(s, name); it != nil {
			matches = append(matches, Match{Section: s, Item: it})
		}
	}
	return matches
}

// Resolve finds exactly one item by name. An empty section searches all
// sections and fails with ErrAmbiguous when the name is in more than one.
func Resolve(m *Manifest, name string, section Section) (Match, error) {
	if section != "" {
		if it := m.Get(section, name); it != nil {
			return Match{Section: section, Item: it}, nil
		}
		return Match{}, fmt.Errorf("%s %q: %w", section.Singular(), name, ErrItemNotFound)
	}

	matches := FindItem(m, name)
	switch len(matches) {
	case 0:
		return Match{}, fmt.Errorf("%q: %w", name, ErrItemNotFound)
	case 1:
		return matches[0], nil
	default:
		return Match{}, fmt.Errorf("%q %w", name, ErrAmbiguous)
	}
}

// ValidateName checks that name is usable as a manifest key and as a file
// name inside tool directories.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w %q: longer than %d characters", ErrInvalidName, name, maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w %q: use letters, digits and . _ @ : -", ErrInvalidName, name)
	}
	return nil
}
