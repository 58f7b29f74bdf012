package source

import (
	"fmt"
	"sync/atomic"
)

// Stats tracks per-source read counters using atomic counters. Analysis is
// single-threaded, but the counters are cheap and a snapshot is always
// consistent.
type Stats struct {
	reads         atomic.Int64
	bytesRead     atomic.Int64
	bytesReplayed atomic.Int64
	cacheHits     atomic.Int64
	failed        atomic.Int64
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Reads         int64
	BytesRead     int64
	BytesReplayed int64
	CacheHits     int64
	Failed        int64
}

// Snapshot returns a consistent point-in-time read of all counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Reads:         s.reads.Load(),
		BytesRead:     s.bytesRead.Load(),
		BytesReplayed: s.bytesReplayed.Load(),
		CacheHits:     s.cacheHits.Load(),
		Failed:        s.failed.Load(),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"reads=%d bytes=%d replayed=%d cache_hits=%d failed=%d",
		s.Reads, s.BytesRead, s.BytesReplayed, s.CacheHits, s.Failed,
	)
}
