//go:build unix

package linker

import (
	"errors"

	"golang.org/x/sys/unix"
)

// classify maps a link(2) errno to a LinkErrorType.
func classify(err error) LinkErrorType {
	switch {
	case errors.Is(err, unix.EXDEV):
		return CrossDevice
	case errors.Is(err, unix.EEXIST):
		return DestinationExists
	case errors.Is(err, unix.ENOENT):
		return SourceNotFound
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES), errors.Is(err, unix.EROFS):
		return PermissionDenied
	default:
		return LinkFailed
	}
}
