package hwcodec

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrCreateFailed           = errors.New("hwcodec: failed to create codec session")
	ErrDriverUnavailable      = errors.New("hwcodec: driver not available")
	ErrClosed                 = errors.New("hwcodec: session closed")
	ErrUnsupportedPixelFormat = errors.New("hwcodec: unsupported pixel format")
	ErrInvalidGeometry        = errors.New("hwcodec: invalid frame geometry")
	ErrLibraryNotFound        = errors.New("hwcodec: libhwcodec not found")
)

// StatusError is a non-success status code returned by a native call.
type StatusError struct {
	Op   string
	Code int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hwcodec: %s failed with status %d", e.Op, e.Code)
}
