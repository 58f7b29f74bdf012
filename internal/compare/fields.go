package compare

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/onuse/fsdiag/internal/analyze"
	"github.com/onuse/fsdiag/internal/ext4"
)

// differ accumulates per-field mismatches. Values are rendered at diff time
// so the report can show them the way the on-disk field is usually printed
// (hex for magics, flags and identifiers, decimal for counts).
type differ struct {
	diffs []FieldDiff
}

func (d *differ) add(field string, a, b any) {
	if a != b {
		d.diffs = append(d.diffs, FieldDiff{Field: field, A: fmt.Sprintf("%v", a), B: fmt.Sprintf("%v", b)})
	}
}

func (d *differ) addHex(field string, a, b uint64, digits int) {
	if a != b {
		d.diffs = append(d.diffs, FieldDiff{
			Field: field,
			A:     fmt.Sprintf("0x%0*X", digits, a),
			B:     fmt.Sprintf("0x%0*X", digits, b),
		})
	}
}

func (d *differ) addBytes(field string, a, b []byte) {
	if !bytes.Equal(a, b) {
		d.diffs = append(d.diffs, FieldDiff{Field: field, A: hex.EncodeToString(a), B: hex.EncodeToString(b)})
	}
}

func diffExFAT(a, b *analyze.ExFATData) []FieldDiff {
	var d differ
	ba, bb := a.Boot, b.Boot

	d.addBytes("jump_boot", ba.JumpBoot[:], bb.JumpBoot[:])
	d.add("fs_name", ba.FileSystemNameString(), bb.FileSystemNameString())
	d.add("partition_offset", ba.PartitionOffset, bb.PartitionOffset)
	d.add("volume_length", ba.VolumeLength, bb.VolumeLength)
	d.add("fat_offset", ba.FATOffset, bb.FATOffset)
	d.add("fat_length", ba.FATLength, bb.FATLength)
	d.add("cluster_heap_offset", ba.ClusterHeapOffset, bb.ClusterHeapOffset)
	d.add("cluster_count", ba.ClusterCount, bb.ClusterCount)
	d.add("first_cluster_of_root", ba.FirstClusterOfRootDirectory, bb.FirstClusterOfRootDirectory)
	d.addHex("volume_serial_number", uint64(ba.VolumeSerialNumber), uint64(bb.VolumeSerialNumber), 8)
	d.addHex("fs_revision", uint64(ba.FileSystemRevision), uint64(bb.FileSystemRevision), 4)
	d.addHex("volume_flags", uint64(ba.VolumeFlags), uint64(bb.VolumeFlags), 4)
	d.add("bytes_per_sector_shift", ba.BytesPerSectorShift, bb.BytesPerSectorShift)
	d.add("sectors_per_cluster_shift", ba.SectorsPerClusterShift, bb.SectorsPerClusterShift)
	d.add("number_of_fats", ba.NumberOfFATs, bb.NumberOfFATs)
	d.addHex("drive_select", uint64(ba.DriveSelect), uint64(bb.DriveSelect), 2)
	d.add("percent_in_use", ba.PercentInUse, bb.PercentInUse)
	d.addHex("boot_signature", uint64(ba.BootSignature), uint64(bb.BootSignature), 4)

	if a.Checksum != nil && b.Checksum != nil {
		d.addHex("boot_checksum", uint64(a.Checksum.Stored), uint64(b.Checksum.Stored), 8)
	}
	return d.diffs
}

func diffExt4(a, b *analyze.Ext4Data) []FieldDiff {
	var d differ
	sa, sb := a.Superblock, b.Superblock

	d.add("s_inodes_count", sa.InodesCount, sb.InodesCount)
	d.add("s_blocks_count_lo", sa.BlocksCountLo, sb.BlocksCountLo)
	d.add("s_r_blocks_count_lo", sa.RBlocksCountLo, sb.RBlocksCountLo)
	d.add("s_free_blocks_count_lo", sa.FreeBlocksLo, sb.FreeBlocksLo)
	d.add("s_free_inodes_count", sa.FreeInodesCount, sb.FreeInodesCount)
	d.add("s_first_data_block", sa.FirstDataBlock, sb.FirstDataBlock)
	d.add("s_log_block_size", sa.LogBlockSize, sb.LogBlockSize)
	d.add("s_blocks_per_group", sa.BlocksPerGroup, sb.BlocksPerGroup)
	d.add("s_inodes_per_group", sa.InodesPerGroup, sb.InodesPerGroup)
	d.add("s_mtime", sa.MTime, sb.MTime)
	d.add("s_wtime", sa.WTime, sb.WTime)
	d.add("s_mnt_count", sa.MntCount, sb.MntCount)
	d.add("s_max_mnt_count", sa.MaxMntCount, sb.MaxMntCount)
	d.addHex("s_magic", uint64(sa.Magic), uint64(sb.Magic), 4)
	d.addHex("s_state", uint64(sa.State), uint64(sb.State), 4)
	d.add("s_errors", sa.Errors, sb.Errors)
	d.add("s_lastcheck", sa.LastCheck, sb.LastCheck)
	d.add("s_rev_level", sa.RevLevel, sb.RevLevel)
	d.add("s_first_ino", sa.FirstIno, sb.FirstIno)
	d.add("s_inode_size", sa.InodeSize, sb.InodeSize)
	d.addHex("s_feature_compat", uint64(sa.FeatureCompat), uint64(sb.FeatureCompat), 8)
	d.addHex("s_feature_incompat", uint64(sa.FeatureIncompat), uint64(sb.FeatureIncompat), 8)
	d.addHex("s_feature_ro_compat", uint64(sa.FeatureROCompat), uint64(sb.FeatureROCompat), 8)
	d.addBytes("s_uuid", sa.UUID[:], sb.UUID[:])
	d.add("s_volume_name", sa.VolumeName, sb.VolumeName)
	d.add("s_last_mounted", sa.LastMounted, sb.LastMounted)
	d.add("s_journal_inum", sa.JournalInum, sb.JournalInum)
	d.add("s_last_orphan", sa.LastOrphan, sb.LastOrphan)
	d.add("s_desc_size", sa.DescSize, sb.DescSize)
	d.add("s_mkfs_time", sa.MkfsTime, sb.MkfsTime)

	switch {
	case sa.Extended != nil && sb.Extended != nil:
		ea, eb := sa.Extended, sb.Extended
		d.add("s_error_count", ea.ErrorCount, eb.ErrorCount)
		d.add("s_first_error_time", ea.FirstErrorTime, eb.FirstErrorTime)
		d.add("s_first_error_func", ea.FirstErrorFunc, eb.FirstErrorFunc)
		d.add("s_last_error_time", ea.LastErrorTime, eb.LastErrorTime)
		d.add("s_last_error_func", ea.LastErrorFunc, eb.LastErrorFunc)
		d.add("s_kbytes_written", ea.KBytesWritten, eb.KBytesWritten)
	case sa.Extended != nil || sb.Extended != nil:
		d.diffs = append(d.diffs, FieldDiff{
			Field: "extended_superblock",
			A:     presence(sa.Extended != nil),
			B:     presence(sb.Extended != nil),
		})
	}

	diffGroups(&d, a.Groups, b.Groups)
	return d.diffs
}

// diffGroups compares the block group descriptors both sides managed to
// decode, positionally, using bg-prefixed on-disk field names.
func diffGroups(d *differ, ga, gb []*ext4.GroupDescriptor) {
	n := len(ga)
	if len(gb) < n {
		n = len(gb)
	}
	for i := 0; i < n; i++ {
		a, b := ga[i], gb[i]
		prefix := fmt.Sprintf("bg%d.", i)
		d.add(prefix+"block_bitmap", a.BlockBitmap(), b.BlockBitmap())
		d.add(prefix+"inode_bitmap", a.InodeBitmap(), b.InodeBitmap())
		d.add(prefix+"inode_table", a.InodeTable(), b.InodeTable())
		d.add(prefix+"free_blocks_count", a.FreeBlocks(), b.FreeBlocks())
		d.add(prefix+"free_inodes_count", a.FreeInodes(), b.FreeInodes())
		d.add(prefix+"used_dirs_count", a.UsedDirsLo, b.UsedDirsLo)
		d.addHex(prefix+"flags", uint64(a.Flags), uint64(b.Flags), 4)
		d.addHex(prefix+"checksum", uint64(a.Checksum), uint64(b.Checksum), 4)
	}
}

func diffFAT16(a, b *analyze.FAT16Data) []FieldDiff {
	var d differ
	ba, bb := a.Boot, b.Boot

	d.add("oem_name", ba.OEMName, bb.OEMName)
	d.add("bytes_per_sector", ba.BytesPerSector, bb.BytesPerSector)
	d.add("sectors_per_cluster", ba.SectorsPerCluster, bb.SectorsPerCluster)
	d.add("reserved_sectors", ba.ReservedSectors, bb.ReservedSectors)
	d.add("num_fats", ba.NumFATs, bb.NumFATs)
	d.add("root_entry_count", ba.RootEntryCount, bb.RootEntryCount)
	d.add("total_sectors_16", ba.TotalSectors16, bb.TotalSectors16)
	d.addHex("media", uint64(ba.Media), uint64(bb.Media), 2)
	d.add("sectors_per_fat", ba.SectorsPerFAT, bb.SectorsPerFAT)
	d.add("sectors_per_track", ba.SectorsPerTrack, bb.SectorsPerTrack)
	d.add("num_heads", ba.NumHeads, bb.NumHeads)
	d.add("hidden_sectors", ba.HiddenSectors, bb.HiddenSectors)
	d.add("total_sectors_32", ba.TotalSectors32, bb.TotalSectors32)
	d.addHex("drive_number", uint64(ba.DriveNumber), uint64(bb.DriveNumber), 2)
	d.addHex("boot_signature_byte", uint64(ba.BootSignatureByte), uint64(bb.BootSignatureByte), 2)
	d.addHex("signature", uint64(ba.Signature), uint64(bb.Signature), 4)

	switch {
	case ba.Extended != nil && bb.Extended != nil:
		d.addHex("volume_serial", uint64(ba.Extended.VolumeSerial), uint64(bb.Extended.VolumeSerial), 8)
		d.add("volume_label", ba.Extended.VolumeLabel, bb.Extended.VolumeLabel)
		d.add("fs_type", ba.Extended.FSType, bb.Extended.FSType)
	case ba.Extended != nil || bb.Extended != nil:
		d.diffs = append(d.diffs, FieldDiff{
			Field: "extended_bpb",
			A:     presence(ba.Extended != nil),
			B:     presence(bb.Extended != nil),
		})
	}
	return d.diffs
}

func presence(p bool) string {
	if p {
		return "present"
	}
	return "absent"
}
