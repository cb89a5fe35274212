package linker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mycelium-labs/mycelium/internal/platform"
)

// Declared is one item a tool directory should (or should not) link.
type Declared struct {
	Name    string
	Source  string
	Enabled bool
}

// Options tunes SyncSkillsToTool.
type Options struct {
	// RemoveOrphans deletes symlinks in the directory that no declared
	// item accounts for. Regular files are never touched.
	RemoveOrphans bool
}

// Report collects per-item results of a directory sync.
type Report struct {
	Dir     string
	Results []Result
}

// Errors returns the per-item errors in the report.
func (r Report) Errors() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Error != nil {
			errs = append(errs, res.Error)
		}
	}
	return errs
}

// Count returns how many results have the given action.
func (r Report) Count(a Action) int {
	n := 0
	for _, res := range r.Results {
		if res.Action == a {
			n++
		}
	}
	return n
}

// SyncSkillsToTool links every enabled item into dir and unlinks every
// declared item that is not enabled. A failure on one item does not stop
// the others.
func SyncSkillsToTool(dir string, declared []Declared, opts Options) Report {
	report := Report{Dir: dir}
	known := make(map[string]bool)

	for _, d := range declared {
		for _, c := range candidates(d) {
			known[c] = true
		}

		link := LinkName(d.Name, d.Source)
		if d.Enabled {
			res := CreateSkillSymlink(d.Source, filepath.Join(dir, link))
			res.Name = d.Name
			report.Results = append(report.Results, res)
		}

		for _, c := range candidates(d) {
			if d.Enabled && c == link {
				continue
			}
			path := filepath.Join(dir, c)
			removed, err := RemoveSkillSymlink(path)
			if err != nil {
				report.Results = append(report.Results, Result{Name: d.Name, Path: path, Action: ActionFailed, Error: err})
				continue
			}
			if removed {
				report.Results = append(report.Results, Result{Name: d.Name, Path: path, Action: ActionRemoved})
			}
		}
	}

	if opts.RemoveOrphans {
		report.Results = append(report.Results, removeOrphans(dir, known)...)
	}
	return report
}

// candidates lists the entry names an item may occupy in a tool
// directory, covering a source whose kind changed since the last sync.
func candidates(d Declared) []string {
	names := []string{LinkName(d.Name, d.Source), d.Name}
	if ext := filepath.Ext(d.Source); ext != "" {
		names = append(names, d.Name+ext)
	}
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func removeOrphans(dir string, known map[string]bool) []Result {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var results []Result
	for _, e := range entries {
		name := e.Name()
		if known[name] || strings.HasSuffix(name, ".target") {
			continue
		}
		path := filepath.Join(dir, name)
		if !platform.IsSymlink(path) {
			continue
		}
		removed, err := RemoveSkillSymlink(path)
		switch {
		case err != nil:
			results = append(results, Result{Name: name, Path: path, Action: ActionFailed, Error: err})
		case removed:
			results = append(results, Result{Name: name, Path: path, Action: ActionRemoved})
		}
	}
	return results
}

// SymlinkRecord is the observed state of one item's link.
type SymlinkRecord struct {
	SkillName     string
	SymlinkPath   string
	Exists        bool
	Valid         bool
	CurrentTarget string
}

// ListSymlinks inspects dir for each name. Exists means something is at
// the path; Valid means it is a link whose target resolves.
func ListSymlinks(dir string, names []string) []SymlinkRecord {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	records := make([]SymlinkRecord, 0, len(sorted))
	for _, name := range sorted {
		path := filepath.Join(dir, name)
		rec := SymlinkRecord{SkillName: name, SymlinkPath: path, Exists: platform.Lexists(path)}
		if target, err := platform.ReadSymlinkTarget(path); err == nil {
			rec.CurrentTarget = target
			rec.Valid = platform.TargetExists(path)
		}
		records = append(records, rec)
	}
	return records
}
