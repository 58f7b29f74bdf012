// Package compare diffs the decoded metadata of two byte sources. Each side
// is decoded and validated independently, sequentially, with no shared
// state; the report carries per-field mismatches, a positional diff of the
// leading allocation-table entries, and a coarse issue attribution.
package compare

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/onuse/fsdiag/internal/analyze"
	"github.com/onuse/fsdiag/internal/source"
)

// DefaultFATEntries is how many leading allocation-table entries are
// compared positionally when the caller does not choose a count.
const DefaultFATEntries = 20

// Attribution is the coarse triage signal over the combined issue picture.
// It never replaces reading the per-side issue lists.
type Attribution int

const (
	BothClean Attribution = iota
	AOnly
	BOnly
	Both
)

func (a Attribution) String() string {
	switch a {
	case BothClean:
		return "both-clean"
	case AOnly:
		return "A-only-has-issues"
	case BOnly:
		return "B-only-has-issues"
	case Both:
		return "both-have-issues"
	default:
		return "unknown"
	}
}

// Input is one side of a comparison: an open byte source and the label the
// report refers to it by (typically the path it was opened from).
type Input struct {
	Label  string
	Source source.Source
}

// Side is the per-side outcome. A failed decode sets Err and leaves Result
// nil; the other side still completes and is reported.
type Side struct {
	Label       string
	Result      *analyze.Result
	Err         error
	Fingerprint string // BLAKE3 hex digest of the format's metadata region
}

// Clean reports whether the side decoded and carries no Critical issues.
func (s *Side) Clean() bool {
	return s.Err == nil && s.Result != nil && !s.Result.HasCritical()
}

// FieldDiff is one per-field mismatch. Matching fields are implicit; only
// differences are recorded, keeping the report proportional to divergence.
// Field names follow the on-disk naming of the format.
type FieldDiff struct {
	Field string
	A, B  string
}

// FATDiff is one positional allocation-table mismatch. Entries 0 and 1
// carry a note naming the format-mandated constant they are expected to
// hold.
type FATDiff struct {
	Index int
	A, B  uint32
	Note  string
}

// Report is the outcome of comparing two sources as the same format.
type Report struct {
	Format      analyze.Format
	A, B        Side
	Fields      []FieldDiff
	FAT         []FATDiff
	Attribution Attribution
}

// Run decodes and validates both inputs sequentially (A first), then diffs
// them. fatEntries bounds the positional allocation-table diff; zero or
// negative means DefaultFATEntries.
func Run(f analyze.Format, a, b Input, fatEntries int) *Report {
	if fatEntries <= 0 {
		fatEntries = DefaultFATEntries
	}

	rep := &Report{
		Format: f,
		A:      analyzeSide(f, a),
		B:      analyzeSide(f, b),
	}
	rep.Attribution = attribute(&rep.A, &rep.B)

	if rep.A.Result == nil || rep.B.Result == nil {
		return rep
	}
	switch f {
	case analyze.FormatExFAT:
		rep.Fields = diffExFAT(rep.A.Result.ExFAT, rep.B.Result.ExFAT)
		rep.FAT = diffFAT32Entries(rep.A.Result.ExFAT.FAT, rep.B.Result.ExFAT.FAT, fatEntries)
	case analyze.FormatExt4:
		rep.Fields = diffExt4(rep.A.Result.Ext4, rep.B.Result.Ext4)
	case analyze.FormatFAT16:
		rep.Fields = diffFAT16(rep.A.Result.FAT16, rep.B.Result.FAT16)
		rep.FAT = diffFAT16Entries(rep.A.Result.FAT16.FAT, rep.B.Result.FAT16.FAT, fatEntries)
	}
	return rep
}

func analyzeSide(f analyze.Format, in Input) Side {
	side := Side{Label: in.Label}
	side.Result, side.Err = analyze.Analyze(in.Source, f)
	if side.Err != nil {
		side.Result = nil
	}
	side.Fingerprint = fingerprint(in.Source, f)
	return side
}

func attribute(a, b *Side) Attribution {
	switch {
	case a.Clean() && b.Clean():
		return BothClean
	case b.Clean():
		return AOnly
	case a.Clean():
		return BOnly
	default:
		return Both
	}
}

// fingerprint hashes the format's fixed metadata region: the exFAT boot
// region including the checksum sector, the ext4 primary superblock, or the
// FAT16 boot sector. Best effort; an unreadable region yields no digest.
func fingerprint(src source.Source, f analyze.Format) string {
	var offset int64
	var length int
	switch f {
	case analyze.FormatExFAT:
		offset, length = 0, 12*512
	case analyze.FormatExt4:
		offset, length = 1024, 1024
	case analyze.FormatFAT16:
		offset, length = 0, 512
	default:
		return ""
	}
	data, err := src.ReadRange(offset, length)
	if err != nil {
		return ""
	}
	h := blake3.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func diffFAT32Entries(a, b []uint32, n int) []FATDiff {
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	var diffs []FATDiff
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			diffs = append(diffs, FATDiff{Index: i, A: a[i], B: b[i], Note: fatNote(i)})
		}
	}
	return diffs
}

func diffFAT16Entries(a, b []uint16, n int) []FATDiff {
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	var diffs []FATDiff
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			diffs = append(diffs, FATDiff{Index: i, A: uint32(a[i]), B: uint32(b[i]), Note: fatNote(i)})
		}
	}
	return diffs
}

func fatNote(index int) string {
	switch index {
	case 0:
		return "media descriptor"
	case 1:
		return "end-of-chain marker"
	default:
		return ""
	}
}
