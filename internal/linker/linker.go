// Package linker handles hardlink creation for medialink.
package linker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LinkErrorType represents the type of link error.
type LinkErrorType string

const (
	// CrossDevice indicates source and target are on different volumes.
	CrossDevice LinkErrorType = "CROSS_DEVICE"
	// PermissionDenied indicates insufficient permissions for the operation.
	PermissionDenied LinkErrorType = "PERMISSION_DENIED"
	// SourceNotFound indicates the source file does not exist.
	SourceNotFound LinkErrorType = "SOURCE_NOT_FOUND"
	// DestinationExists indicates a file already exists at the destination.
	DestinationExists LinkErrorType = "DESTINATION_EXISTS"
	// LinkFailed covers every other failure (disk full, too many links, ...).
	LinkFailed LinkErrorType = "LINK_FAILED"
)

// LinkError represents an error that occurred while creating a hardlink
// or the directory that should contain it.
type LinkError struct {
	Type   LinkErrorType
	Source string
	Target string
	Err    error
}

func (e *LinkError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %s -> %s (%v)", e.Type, e.Source, e.Target, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Linker creates a hardlink at target pointing to the data of source.
type Linker interface {
	Link(source, target string) error
}

// LinkFunc adapts a function to the Linker interface.
type LinkFunc func(source, target string) error

// Link calls f(source, target).
func (f LinkFunc) Link(source, target string) error {
	return f(source, target)
}

// HardLinker creates hardlinks with link(2).
type HardLinker struct{}

// Link creates the hardlink. A symlinked source is resolved first so the
// target shares the data of the file it points to, never the symlink itself.
// Failures are returned as *LinkError.
func (HardLinker) Link(source, target string) error {
	resolved, err := resolveSource(source)
	if err != nil {
		return &LinkError{Type: SourceNotFound, Source: source, Target: target, Err: err}
	}

	err = os.Link(resolved, target)
	if err == nil {
		return nil
	}

	errType := classify(err)
	if errType == SourceNotFound {
		// ENOENT also covers a missing target directory.
		if _, statErr := os.Lstat(source); statErr == nil {
			errType = LinkFailed
		}
	}
	return &LinkError{
		Type:   errType,
		Source: source,
		Target: target,
		Err:    err,
	}
}

// resolveSource returns the file a symlink points to, or source itself when
// it is not a symlink.
func resolveSource(source string) (string, error) {
	info, err := os.Lstat(source)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return source, nil
	}
	return filepath.EvalSymlinks(source)
}

// Exists reports whether anything occupies path. Symlinks are not followed,
// so a dangling symlink counts as existing.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates dir and any missing parents. An existing directory is
// not an error.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		errType := LinkFailed
		if os.IsPermission(err) {
			errType = PermissionDenied
		}
		return &LinkError{
			Type:   errType,
			Target: dir,
			Err:    err,
		}
	}
	return nil
}
