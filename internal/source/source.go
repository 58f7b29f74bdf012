// Package source provides offset-addressed read access to block devices and
// disk images. Two implementations exist: FileSource for media that support
// arbitrary seeks, and SequentialSource for raw devices that only accept
// sequential reads from the start.
package source

import (
	"fmt"
	"io"
)

// UnknownSize is returned by Size when the total length of the medium
// cannot be determined (sequential raw devices).
const UnknownSize int64 = -1

// Source is offset-addressed read access to a device or image. A Source is
// opened for the duration of one analysis and is never shared between
// concurrent decode passes.
type Source interface {
	io.Closer

	// ReadRange reads exactly length bytes starting at offset. A short or
	// failed read returns a *ReadError; the result is never zero-padded.
	ReadRange(offset int64, length int) ([]byte, error)

	// Size returns the total size of the medium in bytes, or UnknownSize.
	Size() int64
}

// ReadError reports a read that failed or returned fewer bytes than
// requested. Callers must treat it as fatal for the structure being decoded.
type ReadError struct {
	Offset int64
	Length int
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at offset %d: %v", e.Length, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
