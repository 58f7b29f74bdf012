// Package ext4 decodes ext4 on-disk metadata: the superblock with its
// revision-gated extended region, block group descriptors (32 or 64 byte),
// and inode records. Offset arithmetic is layered: superblock → group
// descriptor → inode, each stage consuming the previous stage's typed
// output.
package ext4

import (
	"encoding/binary"
	"fmt"

	"github.com/onuse/fsdiag/internal/source"
)

const (
	// SuperblockOffset is the fixed byte offset of the primary superblock.
	SuperblockOffset = 1024

	// SuperblockSize is the size of the superblock structure.
	SuperblockSize = 1024

	// Magic is the ext-family superblock magic (little-endian at 0x38).
	Magic = 0xEF53

	// StateClean is the s_state value of a cleanly unmounted filesystem.
	StateClean = 0x0001
)

// Compat feature bits.
const (
	FeatureCompatHasJournal = 0x0004
)

// Incompat feature bits.
const (
	FeatureIncompatRecover = 0x0004
	FeatureIncompat64Bit   = 0x0080
)

// Read-only compat feature bits.
const (
	FeatureROCompatSparseSuper  = 0x0001
	FeatureROCompatGDTCsum      = 0x0010
	FeatureROCompatMetadataCsum = 0x0400
)

// Superblock holds the fields of the primary superblock. Field names follow
// the on-disk s_* names with Go casing. Extended is nil when the revision
// level predates the extended region — absent is distinguishable from zero.
type Superblock struct {
	InodesCount      uint32
	BlocksCountLo    uint32
	RBlocksCountLo   uint32
	FreeBlocksLo     uint32
	FreeInodesCount  uint32
	FirstDataBlock   uint32
	LogBlockSize     uint32
	LogClusterSize   uint32
	BlocksPerGroup   uint32
	ClustersPerGroup uint32
	InodesPerGroup   uint32
	MTime            uint32
	WTime            uint32
	MntCount         uint16
	MaxMntCount      uint16
	Magic            uint16
	State            uint16
	Errors           uint16
	MinorRevLevel    uint16
	LastCheck        uint32
	CheckInterval    uint32
	CreatorOS        uint32
	RevLevel         uint32
	DefResUID        uint16
	DefResGID        uint16
	FirstIno         uint32
	InodeSize        uint16
	BlockGroupNr     uint16
	FeatureCompat    uint32
	FeatureIncompat  uint32
	FeatureROCompat  uint32
	UUID             [16]byte
	VolumeName       string
	LastMounted      string

	AlgorithmUsageBitmap uint32
	PreallocBlocks       uint8
	PreallocDirBlocks    uint8
	ReservedGdtBlocks    uint16

	JournalUUID [16]byte
	JournalInum uint32
	JournalDev  uint32
	LastOrphan  uint32

	HashSeed         [4]uint32
	DefHashVersion   uint8
	JnlBackupType    uint8
	DescSize         uint16
	DefaultMountOpts uint32
	FirstMetaBg      uint32
	MkfsTime         uint32

	Extended *ExtendedSuperblock
}

// ExtendedSuperblock holds the fields present only when s_rev_level >= 1 and
// the superblock region spans at least 0x200 bytes.
type ExtendedSuperblock struct {
	BlocksCountHi    uint32
	RBlocksCountHi   uint32
	FreeBlocksHi     uint32
	MinExtraIsize    uint16
	WantExtraIsize   uint16
	Flags            uint32
	RaidStride       uint16
	MMPInterval      uint16
	MMPBlock         uint64
	RaidStripeWidth  uint32
	LogGroupsPerFlex uint8
	ChecksumType     uint8
	EncryptionLevel  uint8
	KBytesWritten    uint64

	SnapshotInum         uint32
	SnapshotID           uint32
	SnapshotRBlocksCount uint64
	SnapshotList         uint32

	ErrorCount      uint32
	FirstErrorTime  uint32
	FirstErrorIno   uint32
	FirstErrorBlock uint64
	FirstErrorFunc  string
	FirstErrorLine  uint32
	LastErrorTime   uint32
	LastErrorIno    uint32
	LastErrorLine   uint32
	LastErrorBlock  uint64
	LastErrorFunc   string

	// Checksum is the stored superblock checksum, present only when the
	// METADATA_CSUM feature is enabled; nil otherwise.
	Checksum *uint32
}

// DecodeSuperblock reads and decodes the primary superblock. It fails only
// if the superblock region cannot be read; a bad magic or inconsistent
// fields decode fine and are left to the validator.
func DecodeSuperblock(src source.Source) (*Superblock, error) {
	data, err := src.ReadRange(SuperblockOffset, SuperblockSize)
	if err != nil {
		return nil, fmt.Errorf("read superblock: %w", err)
	}
	return decodeSuperblock(data), nil
}

func decodeSuperblock(data []byte) *Superblock {
	le := binary.LittleEndian
	sb := &Superblock{
		InodesCount:      le.Uint32(data[0x00:]),
		BlocksCountLo:    le.Uint32(data[0x04:]),
		RBlocksCountLo:   le.Uint32(data[0x08:]),
		FreeBlocksLo:     le.Uint32(data[0x0C:]),
		FreeInodesCount:  le.Uint32(data[0x10:]),
		FirstDataBlock:   le.Uint32(data[0x14:]),
		LogBlockSize:     le.Uint32(data[0x18:]),
		LogClusterSize:   le.Uint32(data[0x1C:]),
		BlocksPerGroup:   le.Uint32(data[0x20:]),
		ClustersPerGroup: le.Uint32(data[0x24:]),
		InodesPerGroup:   le.Uint32(data[0x28:]),
		MTime:            le.Uint32(data[0x2C:]),
		WTime:            le.Uint32(data[0x30:]),
		MntCount:         le.Uint16(data[0x34:]),
		MaxMntCount:      le.Uint16(data[0x36:]),
		Magic:            le.Uint16(data[0x38:]),
		State:            le.Uint16(data[0x3A:]),
		Errors:           le.Uint16(data[0x3C:]),
		MinorRevLevel:    le.Uint16(data[0x3E:]),
		LastCheck:        le.Uint32(data[0x40:]),
		CheckInterval:    le.Uint32(data[0x44:]),
		CreatorOS:        le.Uint32(data[0x48:]),
		RevLevel:         le.Uint32(data[0x4C:]),
		DefResUID:        le.Uint16(data[0x50:]),
		DefResGID:        le.Uint16(data[0x52:]),
		FirstIno:         le.Uint32(data[0x54:]),
		InodeSize:        le.Uint16(data[0x58:]),
		BlockGroupNr:     le.Uint16(data[0x5A:]),
		FeatureCompat:    le.Uint32(data[0x5C:]),
		FeatureIncompat:  le.Uint32(data[0x60:]),
		FeatureROCompat:  le.Uint32(data[0x64:]),
		VolumeName:       cString(data[0x78:0x88]),
		LastMounted:      cString(data[0x88:0xC8]),

		AlgorithmUsageBitmap: le.Uint32(data[0xC8:]),
		PreallocBlocks:       data[0xCC],
		PreallocDirBlocks:    data[0xCD],
		ReservedGdtBlocks:    le.Uint16(data[0xCE:]),

		JournalInum: le.Uint32(data[0xE0:]),
		JournalDev:  le.Uint32(data[0xE4:]),
		LastOrphan:  le.Uint32(data[0xE8:]),

		DefHashVersion:   data[0xFC],
		JnlBackupType:    data[0xFD],
		DescSize:         le.Uint16(data[0xFE:]),
		DefaultMountOpts: le.Uint32(data[0x100:]),
		FirstMetaBg:      le.Uint32(data[0x104:]),
		MkfsTime:         le.Uint32(data[0x108:]),
	}
	copy(sb.UUID[:], data[0x68:0x78])
	copy(sb.JournalUUID[:], data[0xD0:0xE0])
	for i := range sb.HashSeed {
		sb.HashSeed[i] = le.Uint32(data[0xEC+i*4:])
	}

	if sb.RevLevel >= 1 && len(data) >= 0x200 {
		ext := &ExtendedSuperblock{
			BlocksCountHi:    le.Uint32(data[0x150:]),
			RBlocksCountHi:   le.Uint32(data[0x154:]),
			FreeBlocksHi:     le.Uint32(data[0x158:]),
			MinExtraIsize:    le.Uint16(data[0x15C:]),
			WantExtraIsize:   le.Uint16(data[0x15E:]),
			Flags:            le.Uint32(data[0x160:]),
			RaidStride:       le.Uint16(data[0x164:]),
			MMPInterval:      le.Uint16(data[0x166:]),
			MMPBlock:         le.Uint64(data[0x168:]),
			RaidStripeWidth:  le.Uint32(data[0x170:]),
			LogGroupsPerFlex: data[0x174],
			ChecksumType:     data[0x175],
			EncryptionLevel:  data[0x176],
			KBytesWritten:    le.Uint64(data[0x178:]),

			SnapshotInum:         le.Uint32(data[0x180:]),
			SnapshotID:           le.Uint32(data[0x184:]),
			SnapshotRBlocksCount: le.Uint64(data[0x188:]),
			SnapshotList:         le.Uint32(data[0x190:]),

			ErrorCount:      le.Uint32(data[0x194:]),
			FirstErrorTime:  le.Uint32(data[0x198:]),
			FirstErrorIno:   le.Uint32(data[0x19C:]),
			FirstErrorBlock: le.Uint64(data[0x1A0:]),
			FirstErrorFunc:  cString(data[0x1A8:0x1C8]),
			FirstErrorLine:  le.Uint32(data[0x1C8:]),
			LastErrorTime:   le.Uint32(data[0x1CC:]),
			LastErrorIno:    le.Uint32(data[0x1D0:]),
			LastErrorLine:   le.Uint32(data[0x1D4:]),
			LastErrorBlock:  le.Uint64(data[0x1D8:]),
			LastErrorFunc:   cString(data[0x1E0:0x200]),
		}
		if sb.FeatureROCompat&FeatureROCompatMetadataCsum != 0 && len(data) >= 0x400 {
			cs := le.Uint32(data[0x3FC:])
			ext.Checksum = &cs
		}
		sb.Extended = ext
	}
	return sb
}

// BlockSize returns the derived block size in bytes (1024 << s_log_block_size).
func (sb *Superblock) BlockSize() int64 { return 1024 << sb.LogBlockSize }

// BlocksCount returns the full 64-bit block count, folding in the high word
// when the extended region is present.
func (sb *Superblock) BlocksCount() uint64 {
	count := uint64(sb.BlocksCountLo)
	if sb.Extended != nil {
		count |= uint64(sb.Extended.BlocksCountHi) << 32
	}
	return count
}

// GroupCount returns the number of block groups.
func (sb *Superblock) GroupCount() uint64 {
	if sb.BlocksPerGroup == 0 {
		return 0
	}
	per := uint64(sb.BlocksPerGroup)
	return (sb.BlocksCount() + per - 1) / per
}

func cString(b []byte) string {
	for i, v := range b {
		if v == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
