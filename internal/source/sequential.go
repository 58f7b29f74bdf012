package source

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

const (
	// replayChunk is the discard-read size used while skipping forward.
	replayChunk = 64 * 1024

	// maxCachedRead bounds which reads are cached. Header and directory
	// queries are all small; large sweeps are not worth holding.
	maxCachedRead = 4096
)

type cacheKey struct {
	offset int64
	length int
}

// SequentialSource emulates random access over a medium that rejects
// arbitrary seeks (raw devices on some platforms accept only a rewind to
// byte 0). Every uncached read replays the medium from the start, discarding
// bytes in bounded chunks until the target offset, so a query costs
// O(offset). A small-read cache keyed by (offset, length) makes repeated
// header queries affordable; it has no eviction and lives only as long as
// the source, which is fine because one analysis issues a bounded number of
// distinct small reads.
type SequentialSource struct {
	r     io.ReadSeeker
	cache map[cacheKey][]byte
	stats Stats
	close func() error
}

// NewSequentialSource wraps a reader that only honors Seek(0, io.SeekStart).
func NewSequentialSource(r io.ReadSeeker) *SequentialSource {
	return &SequentialSource{r: r, cache: make(map[cacheKey][]byte)}
}

// OpenSequential opens path on the given filesystem under the sequential
// access model.
func OpenSequential(fsys afero.Fs, path string) (*SequentialSource, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if osf, ok := any(f).(*os.File); ok {
		AdviseSequential(osf)
	}
	return &SequentialSource{r: f, cache: make(map[cacheKey][]byte), close: f.Close}, nil
}

// ReadRange implements Source.
func (s *SequentialSource) ReadRange(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, &ReadError{Offset: offset, Length: length, Err: fmt.Errorf("negative range")}
	}

	key := cacheKey{offset, length}
	if data, ok := s.cache[key]; ok {
		s.stats.cacheHits.Add(1)
		// Callers own the returned slice; hand out a copy so a caller
		// that writes into it cannot poison later reads.
		return append([]byte(nil), data...), nil
	}

	if _, err := s.r.Seek(0, io.SeekStart); err != nil {
		s.stats.failed.Add(1)
		return nil, &ReadError{Offset: offset, Length: length, Err: fmt.Errorf("rewind: %w", err)}
	}

	// Skip forward to offset in bounded chunks, discarding the bytes.
	scratch := make([]byte, replayChunk)
	remaining := offset
	for remaining > 0 {
		n := int64(replayChunk)
		if remaining < n {
			n = remaining
		}
		read, err := io.ReadFull(s.r, scratch[:n])
		s.stats.bytesReplayed.Add(int64(read))
		if err != nil {
			s.stats.failed.Add(1)
			return nil, &ReadError{
				Offset: offset,
				Length: length,
				Err:    fmt.Errorf("medium ended at %d while seeking: %w", offset-remaining+int64(read), err),
			}
		}
		remaining -= n
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		s.stats.failed.Add(1)
		return nil, &ReadError{Offset: offset, Length: length, Err: err}
	}

	s.stats.reads.Add(1)
	s.stats.bytesRead.Add(int64(length))
	if length <= maxCachedRead {
		s.cache[key] = append([]byte(nil), buf...)
	}
	return buf, nil
}

// Size implements Source. The total length of a sequential-only medium is
// not knowable without reading it to the end, so it is reported as unknown.
func (s *SequentialSource) Size() int64 { return UnknownSize }

// Stats returns a snapshot of the read counters.
func (s *SequentialSource) Stats() Snapshot { return s.stats.Snapshot() }

// Close implements Source.
func (s *SequentialSource) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}
