package watcher

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"medialink/internal/normalizer"
)

// DefaultIgnorePatterns returns the gitignore-style patterns for partial
// downloads that should never trigger a re-run.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.tmp",
		"*.part",
		"*.download",
		"*.crdownload", // Chrome partial downloads
		"*.partial",
		".~*",
	}
}

// FileFilter decides which filesystem events are irrelevant.
type FileFilter struct {
	patterns []string
	matcher  *ignore.GitIgnore
}

// NewFileFilter creates a FileFilter from gitignore-style patterns.
// If patterns is empty, DefaultIgnorePatterns is used.
func NewFileFilter(patterns []string) *FileFilter {
	if len(patterns) == 0 {
		patterns = DefaultIgnorePatterns()
	}
	return &FileFilter{
		patterns: patterns,
		matcher:  ignore.CompileIgnoreLines(patterns...),
	}
}

// ShouldIgnore reports whether an event for path under root should be
// dropped. Temporary download files (".<hex>.parts") are always ignored.
func (f *FileFilter) ShouldIgnore(root, path string, isDir bool) bool {
	if normalizer.IsTemporary(filepath.Base(path)) {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return f.matcher.MatchesPath(rel)
}

// Patterns returns a copy of the ignore patterns.
func (f *FileFilter) Patterns() []string {
	result := make([]string, len(f.patterns))
	copy(result, f.patterns)
	return result
}
