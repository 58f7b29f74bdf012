package report_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onuse/fsdiag/internal/analyze"
	"github.com/onuse/fsdiag/internal/compare"
	"github.com/onuse/fsdiag/internal/exfat"
	"github.com/onuse/fsdiag/internal/fat16"
	"github.com/onuse/fsdiag/internal/report"
)

func TestHexdump(t *testing.T) {
	data := append([]byte("GoodBytes"), 0x00, 0x01, 0xFF)
	var buf bytes.Buffer
	require.NoError(t, report.Hexdump(&buf, data, 0))

	assert.Equal(t,
		"00000000  47 6f 6f 64 42 79 74 65  73 00 01 ff              |GoodBytes...|\n",
		buf.String())
}

func TestHexdump_BaseOffsetAndWrap(t *testing.T) {
	data := make([]byte, 20)
	var buf bytes.Buffer
	require.NoError(t, report.Hexdump(&buf, data, 1024))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "00000400  "))
	assert.True(t, strings.HasPrefix(lines[1], "00000410  "))
}

func TestWriteAnalysis(t *testing.T) {
	res := &analyze.Result{
		Format: analyze.FormatFAT16,
		FAT16: &analyze.FAT16Data{
			FAT: []uint16{0xFFF8, 0xFFFF, 0x0003},
			RootDir: []fat16.DirEntry{
				fat16.ShortName{Name: "FOO", Ext: "TXT", FirstCluster: 2, Size: 10},
			},
		},
		Issues: []analyze.Issue{
			{Severity: analyze.Warning, Location: "FAT", Message: "entry 0 unexpected"},
		},
		Info: []string{"clusters: 100"},
	}

	var buf bytes.Buffer
	report.WriteAnalysis(&buf, "disk.img", res)
	out := buf.String()

	assert.Contains(t, out, "disk.img: fat16")
	assert.Contains(t, out, "clusters: 100")
	assert.Contains(t, out, "[ 0] 0xFFF8  end of chain (EOF)")
	assert.Contains(t, out, "FOO.TXT")
	assert.Contains(t, out, "[warning] FAT: entry 0 unexpected")
	assert.NotContains(t, out, "no issues found")
}

func TestWriteAnalysis_NoIssues(t *testing.T) {
	res := &analyze.Result{Format: analyze.FormatExt4, Ext4: &analyze.Ext4Data{}}
	var buf bytes.Buffer
	report.WriteAnalysis(&buf, "x", res)
	assert.Contains(t, buf.String(), "no issues found")
}

func TestWriteComparison_FailedSide(t *testing.T) {
	rep := &compare.Report{
		Format:      analyze.FormatExt4,
		A:           compare.Side{Label: "bad.img", Err: errors.New("read boot sector: short read")},
		B:           compare.Side{Label: "good.img", Result: &analyze.Result{Format: analyze.FormatExt4, Ext4: &analyze.Ext4Data{}}},
		Attribution: compare.AOnly,
	}

	var buf bytes.Buffer
	report.WriteComparison(&buf, rep)
	out := buf.String()

	assert.Contains(t, out, "bad.img: decode failed")
	assert.Contains(t, out, "good.img: clean")
	assert.Contains(t, out, "attribution: A-only-has-issues")
	assert.NotContains(t, out, "field mismatches")
}

func TestWriteComparison_FieldAndFATDiffs(t *testing.T) {
	res := func() *analyze.Result {
		return &analyze.Result{Format: analyze.FormatFAT16, FAT16: &analyze.FAT16Data{}}
	}
	rep := &compare.Report{
		Format: analyze.FormatFAT16,
		A:      compare.Side{Label: "a", Result: res()},
		B:      compare.Side{Label: "b", Result: res()},
		Fields: []compare.FieldDiff{{Field: "volume_serial", A: "0x01", B: "0x02"}},
		FAT:    []compare.FATDiff{{Index: 0, A: 0xFFF8, B: 0xFFF0, Note: "media descriptor"}},
	}

	var buf bytes.Buffer
	report.WriteComparison(&buf, rep)
	out := buf.String()

	assert.Contains(t, out, "volume_serial:")
	assert.Contains(t, out, "0x01 != 0x02")
	assert.Contains(t, out, "FAT[0]: 0xFFF8 != 0xFFF0  (media descriptor)")
}

func TestDescribeEntries(t *testing.T) {
	assert.Equal(t, `volume label "DATA" (4 chars)`,
		report.DescribeExFATEntry(exfat.VolumeLabel{CharCount: 4, Label: "DATA"}))
	assert.Equal(t, "unknown entry type 0x7F",
		report.DescribeExFATEntry(exfat.Unknown{Type: 0x7F}))
	assert.Equal(t, "deleted entry", report.DescribeFAT16Entry(fat16.Deleted{}))
}
