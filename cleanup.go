package nativemod

import (
	"os"
	"path/filepath"
	"sort"
)

// CleanupResult reports what a Cleanup call did. Nothing in it is an
// error: skipped directories and already-missing paths are informational.
type CleanupResult struct {
	// Removed lists the paths deleted by this call.
	Removed []string

	// Skipped lists directories left in place because they still
	// contained entries this loader did not create.
	Skipped []SkippedDir

	// Missing lists tracked paths that no longer existed; they are
	// treated as already clean.
	Missing []string
}

// SkippedDir is a tracked directory that was not removed because it was
// not empty at removal time.
type SkippedDir struct {
	Path    string
	Entries []string // absolute paths of the remaining entries
}

// Cleanup removes every path this loader created, in reverse lexicographic
// order so files inside a created directory go before the directory
// itself.
//
// Directories are removed only when empty at removal time; a directory
// holding entries the loader did not create is skipped and reported, and
// cleanup continues with the remaining paths. Regular files and symlinks
// are removed unconditionally. Paths that no longer exist count as already
// clean. Cleanup never fails: it drains the tracked list (keeping only
// skipped directories for a later retry), so calling it again is a no-op
// unless a skipped directory has since been emptied.
//
// The built and imported state is untouched: an already-obtained module
// handle stays in memory, with no guarantee about its behavior once the
// backing file is gone.
func (l *Loader) Cleanup() *CleanupResult {
	result := &CleanupResult{}

	sort.Sort(sort.Reverse(sort.StringSlice(l.created)))

	if len(l.created) > 0 {
		l.logf("Removing created paths:")
		for _, path := range l.created {
			l.logf("  %s", path)
		}
	} else {
		l.logf("No files to clean.")
	}

	var remaining []string
	for _, path := range l.created {
		info, err := os.Lstat(path)
		if err != nil {
			l.logf("Path %q does not exist.", path)
			result.Missing = append(result.Missing, path)
			continue
		}

		if info.IsDir() {
			entries, err := listAbsDir(path)
			if err == nil && len(entries) > 0 {
				l.logf("Cannot remove non-empty directory %q.", path)
				result.Skipped = append(result.Skipped, SkippedDir{Path: path, Entries: entries})
				remaining = append(remaining, path)
				continue
			}
			if err := os.Remove(path); err != nil {
				remaining = append(remaining, path)
				continue
			}
			result.Removed = append(result.Removed, path)
			continue
		}

		// Regular file or symlink.
		if err := os.Remove(path); err != nil {
			remaining = append(remaining, path)
			continue
		}
		result.Removed = append(result.Removed, path)
	}

	l.created = remaining
	return result
}

// listAbsDir returns the absolute paths of dir's entries.
func listAbsDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}
