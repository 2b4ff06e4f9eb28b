package raw

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrRawProcessing matches every failure returned by Decoder.Decode, so
// callers can tell RAW failures apart from standard image decode errors.
var ErrRawProcessing = errors.New("raw processing failed")

// ErrUnsupported marks layouts the built-in sensor decoder does not handle,
// such as vendor-compressed sensor data.
var ErrUnsupported = errors.New("unsupported raw layout")

// Error describes a failed RAW decode.
type Error struct {
	Path  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("raw processing failed for %s (%s): %v", filepath.Base(e.Path), e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports true for ErrRawProcessing.
func (e *Error) Is(target error) bool { return target == ErrRawProcessing }
