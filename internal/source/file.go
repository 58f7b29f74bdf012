package source

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// FileSource reads a device or image through an io.ReaderAt. This is the
// normal path: the underlying handle supports arbitrary seeks.
type FileSource struct {
	r     io.ReaderAt
	size  int64
	stats Stats
	close func() error
}

// NewFileSource wraps an already-open random-access handle. size may be
// UnknownSize if the caller cannot determine it.
func NewFileSource(r io.ReaderAt, size int64) *FileSource {
	return &FileSource{r: r, size: size}
}

// Open opens path on the given filesystem as a FileSource. For block devices
// whose Stat size is zero (common on Linux), the size is recovered with a
// device ioctl where available, falling back to seeking to the end.
func Open(fsys afero.Fs, path string) (*FileSource, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	size := UnknownSize
	if fi, err := f.Stat(); err == nil && fi.Size() > 0 {
		size = fi.Size()
	} else if osf, ok := any(f).(*os.File); ok {
		if n, err := deviceSize(osf); err == nil {
			size = n
		}
	}
	if size == UnknownSize {
		if n, err := f.Seek(0, io.SeekEnd); err == nil && n > 0 {
			size = n
		}
	}

	return &FileSource{r: f, size: size, close: f.Close}, nil
}

// ReadRange implements Source.
func (s *FileSource) ReadRange(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &ReadError{Offset: offset, Length: length, Err: fmt.Errorf("negative range")}
	}
	buf := make([]byte, length)
	n, err := s.r.ReadAt(buf, offset)
	if n < length {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		s.stats.failed.Add(1)
		return nil, &ReadError{Offset: offset, Length: length, Err: err}
	}
	s.stats.reads.Add(1)
	s.stats.bytesRead.Add(int64(length))
	return buf, nil
}

// Size implements Source.
func (s *FileSource) Size() int64 { return s.size }

// Stats returns a snapshot of the read counters.
func (s *FileSource) Stats() Snapshot { return s.stats.Snapshot() }

// Close implements Source. Sources constructed with NewFileSource do not own
// their handle and Close is a no-op for them.
func (s *FileSource) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}
