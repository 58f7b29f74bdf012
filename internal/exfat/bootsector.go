// Package exfat decodes the on-disk metadata of exFAT volumes: the boot
// region with its rolling checksum, the 32-bit FAT, and the root directory
// entry set. Decoding is defensive: invalid-but-present values decode fine
// and are judged by the validator, not here.
package exfat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/onuse/fsdiag/internal/source"
)

const (
	// SectorSize is the boot-region sector size. The boot region layout and
	// checksum are defined over 512-byte sectors regardless of the volume's
	// BytesPerSectorShift.
	SectorSize = 512

	// BootRegionSectors is the number of sectors covered by the boot
	// checksum (sectors 0-10); sector 11 stores the checksum itself.
	BootRegionSectors = 11

	// ChecksumSector is the sector holding the replicated boot checksum.
	ChecksumSector = 11

	// FileSystemName is the required volume identification string.
	FileSystemName = "EXFAT   "

	// BootSignature is the required value of the last two boot sector bytes.
	BootSignature = 0xAA55
)

// BootSector is the 512-byte exFAT main boot sector, decoded verbatim.
type BootSector struct {
	JumpBoot                    [3]byte
	FileSystemName              [8]byte
	MustBeZero                  [53]byte
	PartitionOffset             uint64
	VolumeLength                uint64
	FATOffset                   uint32
	FATLength                   uint32
	ClusterHeapOffset           uint32
	ClusterCount                uint32
	FirstClusterOfRootDirectory uint32
	VolumeSerialNumber          uint32
	FileSystemRevision          uint16
	VolumeFlags                 uint16
	BytesPerSectorShift         uint8
	SectorsPerClusterShift      uint8
	NumberOfFATs                uint8
	DriveSelect                 uint8
	PercentInUse                uint8
	Reserved                    [7]byte
	BootCode                    [390]byte
	BootSignature               uint16
}

// DecodeBootSector reads and decodes sector 0. It fails only if the sector
// itself cannot be read.
func DecodeBootSector(src source.Source) (*BootSector, error) {
	data, err := src.ReadRange(0, SectorSize)
	if err != nil {
		return nil, fmt.Errorf("read boot sector: %w", err)
	}

	var bs BootSector
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &bs); err != nil {
		return nil, fmt.Errorf("decode boot sector: %w", err)
	}
	return &bs, nil
}

// BytesPerSector returns the decoded sector size (1 << BytesPerSectorShift).
func (b *BootSector) BytesPerSector() int64 { return 1 << b.BytesPerSectorShift }

// SectorsPerCluster returns the decoded cluster size in sectors.
func (b *BootSector) SectorsPerCluster() int64 { return 1 << b.SectorsPerClusterShift }

// FATByteOffset returns the byte offset of the first FAT copy.
func (b *BootSector) FATByteOffset() int64 {
	return int64(b.FATOffset) * b.BytesPerSector()
}

// RootDirectoryOffset returns the byte offset of the root directory's first
// cluster. Cluster numbering starts at 2, so the first cluster of the heap
// is cluster 2.
func (b *BootSector) RootDirectoryOffset() int64 {
	bps := b.BytesPerSector()
	clusterBytes := b.SectorsPerCluster() * bps
	return int64(b.ClusterHeapOffset)*bps + int64(b.FirstClusterOfRootDirectory-2)*clusterBytes
}

// FileSystemNameString returns the trimmed-for-display FS name field.
func (b *BootSector) FileSystemNameString() string {
	return string(b.FileSystemName[:])
}

// MustBeZeroClean reports whether the must-be-zero region is all zeros.
func (b *BootSector) MustBeZeroClean() bool {
	for _, v := range b.MustBeZero {
		if v != 0 {
			return false
		}
	}
	return true
}
