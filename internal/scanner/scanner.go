// Package scanner handles directory traversal for medialink.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	ignore "github.com/sabhiram/go-gitignore"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	// DirectoryNotFound indicates the directory does not exist.
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	// PermissionDenied indicates insufficient permissions to read the directory.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
	// SymlinkError indicates a symlink was encountered with "error" policy.
	SymlinkError ScanErrorType = "SYMLINK_ERROR"
	// BrokenSymlink indicates a followed symlink whose target is missing.
	BrokenSymlink ScanErrorType = "BROKEN_SYMLINK"
	// ReadFailed covers any other failure to stat or list an entry.
	ReadFailed ScanErrorType = "READ_FAILED"
)

// Symlink policy constants
const (
	SymlinkPolicyFollow = "follow"
	SymlinkPolicySkip   = "skip"
	SymlinkPolicyError  = "error"
)

// ValidSymlinkPolicy reports whether policy is one of the known policies.
// The empty string is accepted and means follow.
func ValidSymlinkPolicy(policy string) bool {
	switch policy {
	case "", SymlinkPolicyFollow, SymlinkPolicySkip, SymlinkPolicyError:
		return true
	}
	return false
}

// ScanError represents an error that occurred during directory scanning.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err == nil {
		return string(e.Type) + ": " + e.Path
	}
	return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	SymlinkPolicy string   // "follow" (default), "skip", or "error"
	Exclude       []string // gitignore-style patterns, matched against the root-relative path
}

// DefaultScanOptions returns the default scan options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		SymlinkPolicy: SymlinkPolicyFollow,
	}
}

// Entry is a file or directory found during a walk.
type Entry struct {
	Name  string // Base name
	Path  string // Full path below the root
	Rel   string // Path relative to the root, OS separators
	IsDir bool
	Depth int // 1 for direct children of the root
}

// WalkFunc is called for every entry in pre-order.
//
// For a directory, returning fs.SkipDir skips its contents. If a directory
// cannot be listed, fn is called a second time for it with the error.
// Per-entry errors go to fn, never to the caller of Walk. A non-nil error
// other than fs.SkipDir returned from fn stops the walk and is returned.
type WalkFunc func(entry Entry, err error) error

// Walk traverses root iteratively using an explicit stack, so deep trees do
// not grow the goroutine stack. Entries of a directory are visited in
// lexical order. The root itself is not passed to fn.
func Walk(root string, opts ScanOptions, fn WalkFunc) error {
	if err := checkRoot(root); err != nil {
		return err
	}

	var matcher *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		matcher = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	w := &walker{
		root:    root,
		opts:    opts,
		fn:      fn,
		matcher: matcher,
		visited: make(map[string]bool),
	}
	w.markVisited(root)
	return w.run()
}

// Count returns the number of files under root accepted by keep. A nil keep
// counts every file. Entries that fail to stat or list are ignored.
func Count(root string, opts ScanOptions, keep func(Entry) bool) (int, error) {
	total := 0
	err := Walk(root, opts, func(entry Entry, err error) error {
		if err != nil || entry.IsDir {
			return nil
		}
		if keep == nil || keep(entry) {
			total++
		}
		return nil
	})
	return total, err
}

// FileEntry represents a file found during scanning.
type FileEntry struct {
	Name     string // Filename only
	FullPath string // Absolute path
	Rel      string // Path relative to the scanned root
}

// Scan collects every file under directory. Per-entry errors are skipped.
func Scan(directory string, opts ScanOptions) ([]FileEntry, error) {
	var files []FileEntry
	err := Walk(directory, opts, func(entry Entry, err error) error {
		if err != nil || entry.IsDir {
			return nil
		}
		abs, absErr := filepath.Abs(entry.Path)
		if absErr != nil {
			abs = entry.Path
		}
		files = append(files, FileEntry{Name: entry.Name, FullPath: abs, Rel: entry.Rel})
		return nil
	})
	return files, err
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScanError{Type: DirectoryNotFound, Path: root, Err: err}
		}
		if os.IsPermission(err) {
			return &ScanError{Type: PermissionDenied, Path: root, Err: err}
		}
		return &ScanError{Type: ReadFailed, Path: root, Err: err}
	}
	if !info.IsDir() {
		return &ScanError{
			Type: DirectoryNotFound,
			Path: root,
			Err:  errors.New("path is not a directory"),
		}
	}
	return nil
}

type walker struct {
	root    string
	opts    ScanOptions
	fn      WalkFunc
	matcher *ignore.GitIgnore
	visited map[string]bool
}

func (w *walker) run() error {
	stack := []Entry{{Path: w.root, IsDir: true}}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if dir.Depth > 0 {
			if err := w.fn(dir, nil); err != nil {
				if errors.Is(err, fs.SkipDir) {
					continue
				}
				return err
			}
		}

		children, err := w.readDir(dir)
		if err != nil {
			if dir.Depth == 0 {
				return err
			}
			if cbErr := w.fn(dir, err); cbErr != nil && !errors.Is(cbErr, fs.SkipDir) {
				return cbErr
			}
			continue
		}

		// Files are reported now; subdirectories are pushed in reverse so
		// they pop in lexical order.
		var subdirs []Entry
		for _, child := range children {
			entry, err := w.resolve(child, dir)
			if entry == nil {
				continue
			}
			if err != nil {
				if cbErr := w.fn(*entry, err); cbErr != nil && !errors.Is(cbErr, fs.SkipDir) {
					return cbErr
				}
				continue
			}
			if entry.IsDir {
				subdirs = append(subdirs, *entry)
				continue
			}
			if cbErr := w.fn(*entry, nil); cbErr != nil && !errors.Is(cbErr, fs.SkipDir) {
				return cbErr
			}
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return nil
}

func (w *walker) readDir(dir Entry) ([]os.DirEntry, error) {
	children, err := os.ReadDir(dir.Path)
	if err != nil {
		errType := ReadFailed
		if os.IsPermission(err) {
			errType = PermissionDenied
		}
		return nil, &ScanError{Type: errType, Path: dir.Path, Err: err}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Name() < children[j].Name()
	})
	return children, nil
}

// resolve turns a directory entry into an Entry, applying the symlink policy,
// exclusions and cycle detection. A nil Entry means the child is dropped
// silently.
func (w *walker) resolve(child os.DirEntry, parent Entry) (*Entry, error) {
	entry := &Entry{
		Name:  child.Name(),
		Path:  filepath.Join(parent.Path, child.Name()),
		Rel:   filepath.Join(parent.Rel, child.Name()),
		Depth: parent.Depth + 1,
	}

	mode := child.Type()
	if mode&os.ModeSymlink != 0 {
		switch w.opts.SymlinkPolicy {
		case SymlinkPolicySkip:
			return nil, nil
		case SymlinkPolicyError:
			return entry, &ScanError{
				Type: SymlinkError,
				Path: entry.Path,
				Err:  errors.New("symlink encountered with error policy"),
			}
		}
		info, err := os.Stat(entry.Path)
		if err != nil {
			return entry, &ScanError{Type: BrokenSymlink, Path: entry.Path, Err: err}
		}
		mode = info.Mode().Type()
	}

	entry.IsDir = mode.IsDir()
	if !entry.IsDir && !mode.IsRegular() {
		// Sockets, devices and pipes cannot be hardlinked meaningfully.
		return nil, nil
	}

	if w.excluded(entry) {
		return nil, nil
	}

	if entry.IsDir && !w.markVisited(entry.Path) {
		return nil, nil
	}
	return entry, nil
}

func (w *walker) excluded(entry *Entry) bool {
	if w.matcher == nil {
		return false
	}
	rel := filepath.ToSlash(entry.Rel)
	if entry.IsDir {
		rel += "/"
	}
	return w.matcher.MatchesPath(rel)
}

// markVisited records the canonical location of a directory and reports
// whether it was seen for the first time. Symlinked directories that loop
// back to an ancestor, or alias a directory already walked, are visited once.
func (w *walker) markVisited(path string) bool {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		canonical = path
	}
	if abs, err := filepath.Abs(canonical); err == nil {
		canonical = abs
	}
	if w.visited[canonical] {
		return false
	}
	w.visited[canonical] = true
	return true
}
