package analyze

import (
	"fmt"
	"time"

	"github.com/onuse/fsdiag/internal/ext4"
	"github.com/onuse/fsdiag/internal/source"
)

// Ext4Data is the decoded record set of one ext4 analysis. Groups holds the
// descriptors that decoded successfully, in group order, bounded by
// ext4.MaxGroupScan.
type Ext4Data struct {
	Superblock *ext4.Superblock
	Groups     []*ext4.GroupDescriptor
	RootInode  *ext4.Inode
}

// Ext4 decodes and validates an ext4 filesystem's metadata. A bad magic
// short-circuits validation: every group and inode offset derives from the
// superblock, so nothing past the magic check is trustworthy.
func Ext4(src source.Source) (*Result, error) {
	sb, err := ext4.DecodeSuperblock(src)
	if err != nil {
		return nil, &DecodeError{Format: FormatExt4, Structure: "superblock", Err: err}
	}

	data := &Ext4Data{Superblock: sb}
	res := &Result{Format: FormatExt4, Ext4: data}
	var l issueList

	if sb.Magic != ext4.Magic {
		l.critical("superblock", "bad magic 0x%04X, want 0x%04X", sb.Magic, uint16(ext4.Magic))
		res.Issues = l.issues
		return res, nil
	}

	if sb.State != ext4.StateClean {
		l.critical("superblock", "not cleanly unmounted (s_state 0x%04X)", sb.State)
	}
	if sb.LastOrphan != 0 {
		l.critical("superblock", "orphan inode list is non-empty (head inode %d)", sb.LastOrphan)
	}
	if ext := sb.Extended; ext != nil && ext.ErrorCount != 0 {
		l.critical("superblock", "%d filesystem errors recorded", ext.ErrorCount)
		if ext.FirstErrorTime != 0 {
			l.info("superblock", "first error: %s in %s:%d (inode %d)",
				unixTime(ext.FirstErrorTime), ext.FirstErrorFunc, ext.FirstErrorLine, ext.FirstErrorIno)
		}
		if ext.LastErrorTime != 0 {
			l.info("superblock", "last error: %s in %s:%d (inode %d)",
				unixTime(ext.LastErrorTime), ext.LastErrorFunc, ext.LastErrorLine, ext.LastErrorIno)
		}
	}

	if sb.FeatureCompat&ext4.FeatureCompatHasJournal != 0 && sb.JournalInum == 0 {
		l.critical("superblock", "has_journal feature set but journal inode is 0")
	}
	if sb.FeatureIncompat&ext4.FeatureIncompatRecover != 0 {
		l.critical("superblock", "journal recovery needed (recover feature set)")
	}
	if sb.FeatureIncompat&ext4.FeatureIncompat64Bit != 0 && sb.Extended == nil {
		l.warning("superblock", "64bit feature set but extended superblock region absent")
	}
	if sb.BlocksCount() == 0 {
		l.critical("superblock", "zero block count")
	}

	if root, err := ext4.ReadInode(src, sb, ext4.RootInode); err != nil {
		l.critical("root inode", "cannot read: %v", err)
	} else {
		data.RootInode = root
		if !root.IsDir() {
			l.critical("root inode", "mode 0x%04X lacks the directory type bit", root.Mode)
		}
		if root.Permissions() == 0 {
			l.critical("root inode", "zero permission bits")
		}
		if root.LinksCount < 2 {
			l.critical("root inode", "link count %d, want at least 2", root.LinksCount)
		}
	}

	scanGroups(src, sb, data, &l)

	addExt4Info(res, sb)
	res.Issues = l.issues
	return res, nil
}

// scanGroups examines the leading block group descriptors, bounded by
// ext4.MaxGroupScan. A descriptor that fails to read yields an issue for
// that group and the scan moves on.
func scanGroups(src source.Source, sb *ext4.Superblock, data *Ext4Data, l *issueList) {
	groups := sb.GroupCount()
	if groups > ext4.MaxGroupScan {
		groups = ext4.MaxGroupScan
	}
	wantChecksum := sb.FeatureROCompat&(ext4.FeatureROCompatGDTCsum|ext4.FeatureROCompatMetadataCsum) != 0

	for g := uint64(0); g < groups; g++ {
		gd, err := ext4.ReadDescriptor(src, sb, g)
		if err != nil {
			l.critical(groupLoc(g), "cannot read descriptor: %v", err)
			continue
		}
		data.Groups = append(data.Groups, gd)

		if gd.BlockBitmap() == 0 {
			l.critical(groupLoc(g), "block bitmap location is zero")
		}
		if gd.InodeBitmap() == 0 {
			l.critical(groupLoc(g), "inode bitmap location is zero")
		}
		if gd.InodeTable() == 0 {
			l.critical(groupLoc(g), "inode table location is zero")
		}
		if wantChecksum && !gd.ChecksumPresent() {
			l.critical(groupLoc(g), "descriptor checksum absent despite checksum feature")
		}
	}
}

func groupLoc(g uint64) string {
	return fmt.Sprintf("bg %d", g)
}

func unixTime(ts uint32) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

func addExt4Info(res *Result, sb *ext4.Superblock) {
	if sb.VolumeName != "" {
		res.addInfof("volume name: %q", sb.VolumeName)
	}
	res.addInfof("block size: %d bytes, %d blocks (%d bytes total)",
		sb.BlockSize(), sb.BlocksCount(), sb.BlocksCount()*uint64(sb.BlockSize()))
	res.addInfof("block groups: %d (%d blocks, %d inodes per group)",
		sb.GroupCount(), sb.BlocksPerGroup, sb.InodesPerGroup)
	res.addInfof("inodes: %d total, %d free", sb.InodesCount, sb.FreeInodesCount)
	if sb.MTime != 0 {
		res.addInfof("last mount: %s at %q", unixTime(sb.MTime), sb.LastMounted)
	}
	res.addInfof("mount count: %d of %d before check", sb.MntCount, sb.MaxMntCount)
}
