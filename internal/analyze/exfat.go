package analyze

import (
	"github.com/onuse/fsdiag/internal/exfat"
	"github.com/onuse/fsdiag/internal/source"
)

// ExFATData is the decoded record set of one exFAT analysis.
type ExFATData struct {
	Boot     *exfat.BootSector
	Checksum *exfat.ChecksumReport
	FAT      []uint32
	RootDir  []exfat.DirEntry
}

// expectedJumpBoot is the canonical jump instruction at offset 0.
var expectedJumpBoot = [3]byte{0xEB, 0x76, 0x90}

// maxClusterCount is the largest cluster count the 32-bit FAT can address.
const maxClusterCount = 0xFFFFFFF5

// ExFAT decodes and validates an exFAT volume's metadata. A DecodeError is
// returned only when the boot sector itself cannot be read; everything past
// that is reported as issues on the Result.
func ExFAT(src source.Source) (*Result, error) {
	boot, err := exfat.DecodeBootSector(src)
	if err != nil {
		return nil, &DecodeError{Format: FormatExFAT, Structure: "boot sector", Err: err}
	}

	data := &ExFATData{Boot: boot}
	res := &Result{Format: FormatExFAT, ExFAT: data}
	var l issueList

	if name := boot.FileSystemNameString(); name != exfat.FileSystemName {
		l.critical("boot sector", "filesystem name %q, want %q", name, exfat.FileSystemName)
	}
	if boot.BootSignature != exfat.BootSignature {
		l.critical("boot sector", "boot signature 0x%04X, want 0x%04X", boot.BootSignature, exfat.BootSignature)
	}
	if boot.NumberOfFATs != 1 && boot.NumberOfFATs != 2 {
		l.critical("boot sector", "number of FATs %d, want 1 or 2", boot.NumberOfFATs)
	}
	if boot.ClusterCount == 0 || boot.ClusterCount > maxClusterCount {
		l.critical("boot sector", "cluster count %d outside valid range", boot.ClusterCount)
	}
	if !boot.MustBeZeroClean() {
		l.warning("boot sector", "must-be-zero region contains non-zero bytes")
	}
	if boot.JumpBoot != expectedJumpBoot {
		l.warning("boot sector", "jump boot % X, commonly EB 76 90", boot.JumpBoot[:])
	}
	if boot.FileSystemRevision != 0x0100 {
		l.warning("boot sector", "filesystem revision %d.%02d, commonly 1.00",
			boot.FileSystemRevision>>8, boot.FileSystemRevision&0xFF)
	}

	if rep, err := exfat.VerifyBootChecksum(src); err != nil {
		l.critical("boot region", "cannot verify checksum: %v", err)
	} else {
		data.Checksum = rep
		if !rep.Match {
			l.critical("boot region", "checksum mismatch: computed 0x%08X, stored 0x%08X", rep.Computed, rep.Stored)
		}
		if !rep.Replicated {
			l.warning("checksum sector", "stored checksum not replicated across the sector")
		}
	}

	if fat, err := exfat.ReadFAT(src, boot, fatPreview); err != nil {
		l.critical("FAT", "cannot read: %v", err)
	} else {
		data.FAT = fat
		if fat[0] != exfat.MediaDescriptorEntry {
			l.warning("FAT", "entry 0 is 0x%08X, want media descriptor 0x%08X", fat[0], uint32(exfat.MediaDescriptorEntry))
		}
		if fat[1] != exfat.EntryEndOfChain {
			l.warning("FAT", "entry 1 is 0x%08X, want end-of-chain 0x%08X", fat[1], uint32(exfat.EntryEndOfChain))
		}
	}

	// The root cluster must land inside the cluster heap before its offset
	// arithmetic means anything.
	rootOK := boot.FirstClusterOfRootDirectory >= 2 &&
		boot.FirstClusterOfRootDirectory-2 < boot.ClusterCount
	if !rootOK {
		l.critical("root directory", "first cluster %d outside cluster heap", boot.FirstClusterOfRootDirectory)
	} else if entries, err := exfat.ReadRootDirectory(src, boot); err != nil {
		l.critical("root directory", "cannot read: %v", err)
	} else {
		data.RootDir = entries
		validateRootEntries(&l, entries)
	}

	addExFATInfo(res, data)
	res.Issues = l.issues
	return res, nil
}

// validateRootEntries checks that the mandatory bookkeeping entries each
// appear exactly once among the root directory's immediate entries.
func validateRootEntries(l *issueList, entries []exfat.DirEntry) {
	var bitmaps, upcases, guids int
	for _, e := range entries {
		switch e.(type) {
		case exfat.AllocationBitmap:
			bitmaps++
		case exfat.UpcaseTable:
			upcases++
		case exfat.VolumeGUID:
			guids++
		}
	}
	if bitmaps != 1 {
		l.critical("root directory", "allocation bitmap entries: %d, want exactly 1", bitmaps)
	}
	if upcases != 1 {
		l.critical("root directory", "upcase table entries: %d, want exactly 1", upcases)
	}
	if guids != 1 {
		l.critical("root directory", "volume GUID entries: %d, want exactly 1", guids)
	}
}

func addExFATInfo(res *Result, data *ExFATData) {
	boot := data.Boot
	res.addInfof("volume length: %d sectors (%d bytes)", boot.VolumeLength, boot.VolumeLength*uint64(boot.BytesPerSector()))
	res.addInfof("bytes per sector: %d, sectors per cluster: %d", boot.BytesPerSector(), boot.SectorsPerCluster())
	res.addInfof("cluster count: %d, heap offset: sector %d", boot.ClusterCount, boot.ClusterHeapOffset)
	res.addInfof("volume serial: 0x%08X", boot.VolumeSerialNumber)
	res.addInfof("percent in use: %d%%", boot.PercentInUse)
	for _, e := range data.RootDir {
		if label, ok := e.(exfat.VolumeLabel); ok {
			res.addInfof("volume label: %q", label.Label)
			break
		}
	}
}
