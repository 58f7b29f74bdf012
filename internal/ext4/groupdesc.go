package ext4

import (
	"encoding/binary"
	"fmt"

	"github.com/onuse/fsdiag/internal/source"
)

// MaxGroupScan bounds how many block group descriptors are examined per
// analysis. Shallow sampling, not a full-volume audit: systemic formatting
// bugs manifest in the first groups, and bounding the scan keeps a
// sequential-emulated source affordable. A consequence of this policy is
// that free-space totals are never validated.
const MaxGroupScan = 5

// Descriptor sizes.
const (
	DescSize32 = 32
	DescSize64 = 64
)

// GroupDescriptor is one block group descriptor. Ext64 is nil when the
// descriptor size is 32 bytes.
type GroupDescriptor struct {
	BlockBitmapLo     uint32
	InodeBitmapLo     uint32
	InodeTableLo      uint32
	FreeBlocksLo      uint16
	FreeInodesLo      uint16
	UsedDirsLo        uint16
	Flags             uint16
	ExcludeBitmapLo   uint32
	BlockBitmapCsumLo uint16
	InodeBitmapCsumLo uint16
	ItableUnusedLo    uint16
	Checksum          uint16

	Ext64 *GroupDescriptor64
}

// GroupDescriptor64 holds the high words present in 64-byte descriptors.
type GroupDescriptor64 struct {
	BlockBitmapHi     uint32
	InodeBitmapHi     uint32
	InodeTableHi      uint32
	FreeBlocksHi      uint16
	FreeInodesHi      uint16
	UsedDirsHi        uint16
	ItableUnusedHi    uint16
	ExcludeBitmapHi   uint32
	BlockBitmapCsumHi uint16
	InodeBitmapCsumHi uint16
}

// DescriptorSize returns the effective descriptor size for this superblock.
// A zero s_desc_size means the pre-64-bit default of 32 bytes.
func DescriptorSize(sb *Superblock) int {
	if sb.DescSize == 0 {
		return DescSize32
	}
	return int(sb.DescSize)
}

// DescriptorTableOffset returns the byte offset of the group descriptor
// table: block 2 for 1 KiB blocks (the superblock fills block 1), block 1
// otherwise.
func DescriptorTableOffset(sb *Superblock) int64 {
	if sb.BlockSize() == 1024 {
		return 2 * 1024
	}
	return sb.BlockSize()
}

// ReadDescriptor reads and decodes the descriptor for block group num.
func ReadDescriptor(src source.Source, sb *Superblock, num uint64) (*GroupDescriptor, error) {
	size := DescriptorSize(sb)
	offset := DescriptorTableOffset(sb) + int64(num)*int64(size)
	data, err := src.ReadRange(offset, size)
	if err != nil {
		return nil, fmt.Errorf("read group descriptor %d: %w", num, err)
	}

	le := binary.LittleEndian
	gd := &GroupDescriptor{
		BlockBitmapLo:     le.Uint32(data[0x00:]),
		InodeBitmapLo:     le.Uint32(data[0x04:]),
		InodeTableLo:      le.Uint32(data[0x08:]),
		FreeBlocksLo:      le.Uint16(data[0x0C:]),
		FreeInodesLo:      le.Uint16(data[0x0E:]),
		UsedDirsLo:        le.Uint16(data[0x10:]),
		Flags:             le.Uint16(data[0x12:]),
		ExcludeBitmapLo:   le.Uint32(data[0x14:]),
		BlockBitmapCsumLo: le.Uint16(data[0x18:]),
		InodeBitmapCsumLo: le.Uint16(data[0x1A:]),
		ItableUnusedLo:    le.Uint16(data[0x1C:]),
		Checksum:          le.Uint16(data[0x1E:]),
	}
	if size >= DescSize64 {
		gd.Ext64 = &GroupDescriptor64{
			BlockBitmapHi:     le.Uint32(data[0x20:]),
			InodeBitmapHi:     le.Uint32(data[0x24:]),
			InodeTableHi:      le.Uint32(data[0x28:]),
			FreeBlocksHi:      le.Uint16(data[0x2C:]),
			FreeInodesHi:      le.Uint16(data[0x2E:]),
			UsedDirsHi:        le.Uint16(data[0x30:]),
			ItableUnusedHi:    le.Uint16(data[0x32:]),
			ExcludeBitmapHi:   le.Uint32(data[0x34:]),
			BlockBitmapCsumHi: le.Uint16(data[0x38:]),
			InodeBitmapCsumHi: le.Uint16(data[0x3A:]),
		}
	}
	return gd, nil
}

// BlockBitmap returns the full 64-bit block bitmap block number.
func (gd *GroupDescriptor) BlockBitmap() uint64 {
	b := uint64(gd.BlockBitmapLo)
	if gd.Ext64 != nil {
		b |= uint64(gd.Ext64.BlockBitmapHi) << 32
	}
	return b
}

// InodeBitmap returns the full 64-bit inode bitmap block number.
func (gd *GroupDescriptor) InodeBitmap() uint64 {
	b := uint64(gd.InodeBitmapLo)
	if gd.Ext64 != nil {
		b |= uint64(gd.Ext64.InodeBitmapHi) << 32
	}
	return b
}

// InodeTable returns the full 64-bit inode table block number.
func (gd *GroupDescriptor) InodeTable() uint64 {
	table := uint64(gd.InodeTableLo)
	if gd.Ext64 != nil {
		table |= uint64(gd.Ext64.InodeTableHi) << 32
	}
	return table
}

// FreeBlocks returns the full free-block count for the group.
func (gd *GroupDescriptor) FreeBlocks() uint32 {
	n := uint32(gd.FreeBlocksLo)
	if gd.Ext64 != nil {
		n |= uint32(gd.Ext64.FreeBlocksHi) << 16
	}
	return n
}

// FreeInodes returns the full free-inode count for the group.
func (gd *GroupDescriptor) FreeInodes() uint32 {
	n := uint32(gd.FreeInodesLo)
	if gd.Ext64 != nil {
		n |= uint32(gd.Ext64.FreeInodesHi) << 16
	}
	return n
}

// ChecksumPresent reports whether the stored descriptor checksum is
// non-zero. This is a presence check only — the CRC16/CRC32C value is not
// recomputed, so a wrong-but-non-zero checksum passes. Downstream
// comparisons rely on these weaker semantics.
func (gd *GroupDescriptor) ChecksumPresent() bool {
	return gd.Checksum != 0
}
