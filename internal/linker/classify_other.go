//go:build !unix

package linker

import (
	"errors"
	"os"
)

func classify(err error) LinkErrorType {
	switch {
	case errors.Is(err, os.ErrExist):
		return DestinationExists
	case errors.Is(err, os.ErrNotExist):
		return SourceNotFound
	case errors.Is(err, os.ErrPermission):
		return PermissionDenied
	default:
		return LinkFailed
	}
}
