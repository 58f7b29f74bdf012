package report

import (
	"fmt"
	"io"

	"github.com/onuse/fsdiag/internal/analyze"
	"github.com/onuse/fsdiag/internal/compare"
	"github.com/onuse/fsdiag/internal/exfat"
	"github.com/onuse/fsdiag/internal/fat16"
)

// WriteAnalysis renders one analysis result: an info block, the decoded
// structural detail, and the issue list ordered as the validator produced
// it.
func WriteAnalysis(w io.Writer, label string, res *analyze.Result) {
	fmt.Fprintf(w, "%s: %s\n", label, res.Format)
	for _, line := range res.Info {
		fmt.Fprintf(w, "  %s\n", line)
	}

	switch res.Format {
	case analyze.FormatExFAT:
		writeExFATDetail(w, res.ExFAT)
	case analyze.FormatExt4:
		writeExt4Detail(w, res.Ext4)
	case analyze.FormatFAT16:
		writeFAT16Detail(w, res.FAT16)
	}

	if len(res.Issues) == 0 {
		fmt.Fprintln(w, "no issues found")
		return
	}
	fmt.Fprintf(w, "issues (%d):\n", len(res.Issues))
	for _, is := range res.Issues {
		fmt.Fprintf(w, "  %s\n", is)
	}
}

func writeExFATDetail(w io.Writer, data *analyze.ExFATData) {
	if data.Checksum != nil {
		verdict := "mismatch"
		if data.Checksum.Match {
			verdict = "ok"
		}
		fmt.Fprintf(w, "boot checksum: computed 0x%08X, stored 0x%08X (%s)\n",
			data.Checksum.Computed, data.Checksum.Stored, verdict)
	}
	if len(data.FAT) > 0 {
		fmt.Fprintln(w, "FAT entries:")
		for i, e := range data.FAT {
			fmt.Fprintf(w, "  [%2d] 0x%08X  %s\n", i, e, exfat.Classify(e))
		}
	}
	if len(data.RootDir) > 0 {
		fmt.Fprintln(w, "root directory:")
		for _, e := range data.RootDir {
			fmt.Fprintf(w, "  %s\n", DescribeExFATEntry(e))
		}
	}
}

func writeExt4Detail(w io.Writer, data *analyze.Ext4Data) {
	for i, gd := range data.Groups {
		fmt.Fprintf(w, "bg %d: block bitmap %d, inode bitmap %d, inode table %d, free %d/%d, checksum 0x%04X\n",
			i, gd.BlockBitmap(), gd.InodeBitmap(), gd.InodeTable(),
			gd.FreeBlocks(), gd.FreeInodes(), gd.Checksum)
	}
	if in := data.RootInode; in != nil {
		fmt.Fprintf(w, "root inode: mode 0%o, uid %d, gid %d, links %d, size %d\n",
			in.Mode, in.UID, in.GID, in.LinksCount, in.SizeLo)
	}
}

func writeFAT16Detail(w io.Writer, data *analyze.FAT16Data) {
	if len(data.FAT) > 0 {
		fmt.Fprintln(w, "FAT entries:")
		for i, e := range data.FAT {
			fmt.Fprintf(w, "  [%2d] 0x%04X  %s\n", i, e, fat16.Classify(e))
		}
	}
	if len(data.RootDir) > 0 {
		fmt.Fprintln(w, "root directory:")
		for _, e := range data.RootDir {
			fmt.Fprintf(w, "  %s\n", DescribeFAT16Entry(e))
		}
	}
}

// WriteComparison renders a comparison report: per-side status, field
// mismatches, allocation-table mismatches, and the attribution verdict.
func WriteComparison(w io.Writer, rep *compare.Report) {
	fmt.Fprintf(w, "comparing as %s\n", rep.Format)
	writeSide(w, &rep.A)
	writeSide(w, &rep.B)

	if rep.A.Result == nil || rep.B.Result == nil {
		fmt.Fprintf(w, "attribution: %s\n", rep.Attribution)
		return
	}

	if len(rep.Fields) == 0 {
		fmt.Fprintln(w, "no field mismatches")
	} else {
		fmt.Fprintf(w, "field mismatches (%d):\n", len(rep.Fields))
		for _, d := range rep.Fields {
			fmt.Fprintf(w, "  %-28s %s != %s\n", d.Field+":", d.A, d.B)
		}
	}

	for _, d := range rep.FAT {
		note := ""
		if d.Note != "" {
			note = "  (" + d.Note + ")"
		}
		fmt.Fprintf(w, "FAT[%d]: 0x%X != 0x%X%s\n", d.Index, d.A, d.B, note)
	}

	writeRootEntries(w, &rep.A)
	writeRootEntries(w, &rep.B)
	fmt.Fprintf(w, "attribution: %s\n", rep.Attribution)
}

func writeSide(w io.Writer, s *compare.Side) {
	if s.Err != nil {
		fmt.Fprintf(w, "%s: decode failed: %v\n", s.Label, s.Err)
		return
	}
	status := "clean"
	if n := len(s.Result.Issues); n > 0 {
		crit := 0
		for _, is := range s.Result.Issues {
			if is.Severity == analyze.Critical {
				crit++
			}
		}
		status = fmt.Sprintf("%d issues (%d critical)", n, crit)
	}
	fp := s.Fingerprint
	if len(fp) > 16 {
		fp = fp[:16]
	}
	fmt.Fprintf(w, "%s: %s, fingerprint %s\n", s.Label, status, fp)
}

// writeRootEntries lists each side's decoded root directory in full. Entry
// order is formatter-dependent, so the lists are reported side by side
// instead of diffed positionally.
func writeRootEntries(w io.Writer, s *compare.Side) {
	if s.Result == nil {
		return
	}
	switch {
	case s.Result.ExFAT != nil && len(s.Result.ExFAT.RootDir) > 0:
		fmt.Fprintf(w, "root entries (%s):\n", s.Label)
		for _, e := range s.Result.ExFAT.RootDir {
			fmt.Fprintf(w, "  %s\n", DescribeExFATEntry(e))
		}
	case s.Result.FAT16 != nil && len(s.Result.FAT16.RootDir) > 0:
		fmt.Fprintf(w, "root entries (%s):\n", s.Label)
		for _, e := range s.Result.FAT16.RootDir {
			fmt.Fprintf(w, "  %s\n", DescribeFAT16Entry(e))
		}
	}
}

// DescribeExFATEntry renders one exFAT root directory entry on a line.
func DescribeExFATEntry(e exfat.DirEntry) string {
	switch v := e.(type) {
	case exfat.VolumeLabel:
		return fmt.Sprintf("volume label %q (%d chars)", v.Label, v.CharCount)
	case exfat.AllocationBitmap:
		return fmt.Sprintf("allocation bitmap: cluster %d, %d bytes", v.FirstCluster, v.DataLength)
	case exfat.UpcaseTable:
		return fmt.Sprintf("upcase table: cluster %d, %d bytes, checksum 0x%08X", v.FirstCluster, v.DataLength, v.TableChecksum)
	case exfat.VolumeGUID:
		return fmt.Sprintf("volume GUID %x", v.GUID)
	case exfat.FileEntry:
		return fmt.Sprintf("file entry: %d secondaries, attributes 0x%04X", v.SecondaryCount, v.Attributes)
	case exfat.StreamExtension:
		return fmt.Sprintf("stream extension: cluster %d, %d bytes, name length %d", v.FirstCluster, v.DataLength, v.NameLength)
	case exfat.FileName:
		return fmt.Sprintf("file name fragment %q", v.Fragment)
	default:
		return fmt.Sprintf("unknown entry type 0x%02X", e.TypeByte())
	}
}

// DescribeFAT16Entry renders one FAT16 root directory entry on a line.
func DescribeFAT16Entry(e fat16.DirEntry) string {
	switch v := e.(type) {
	case fat16.ShortName:
		return fmt.Sprintf("%s: attributes 0x%02X, cluster %d, %d bytes", v.DisplayName(), v.Attributes, v.FirstCluster, v.Size)
	case fat16.LongName:
		last := ""
		if v.Last {
			last = ", last"
		}
		return fmt.Sprintf("long name fragment: sequence %d%s, checksum 0x%02X", v.Sequence, last, v.Checksum)
	case fat16.VolumeLabelEntry:
		return fmt.Sprintf("volume label %q", v.Label)
	case fat16.Deleted:
		return "deleted entry"
	default:
		return fmt.Sprintf("entry with first byte 0x%02X", e.FirstByte())
	}
}
