// Package fat16 decodes FAT16 on-disk metadata: the BIOS parameter block
// with its conditionally-present extended fields, the 16-bit FAT, and the
// fixed root directory region.
package fat16

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/onuse/fsdiag/internal/source"
)

const (
	// SectorSize is the boot sector size; offsets within the BPB are
	// defined against 512-byte sector 0.
	SectorSize = 512

	// BootSignature is the required value of the last two boot sector bytes.
	BootSignature = 0xAA55

	// ExtendedBootSignature marks the presence of the extended BPB fields.
	ExtendedBootSignature = 0x29
)

// FAT16 cluster count bounds. Below the minimum the volume is FAT12, above
// the maximum it is FAT32.
const (
	MinClusters = 4085
	MaxClusters = 65524
)

// bpbFixed is the packed fixed prefix of the boot sector (offsets 0x00-0x23).
type bpbFixed struct {
	JumpBoot          [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// BootSector is the decoded FAT16 boot sector. Extended is nil unless the
// boot-signature byte equals 0x29; absence is distinguishable from zeroed
// extended fields.
type BootSector struct {
	JumpBoot          [3]byte
	OEMName           string
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32

	DriveNumber       uint8
	BootSignatureByte uint8
	Extended          *ExtendedBPB

	Signature uint16 // bytes 510-511, must be 0xAA55
}

// ExtendedBPB holds the fields present only when the boot-signature byte is
// 0x29.
type ExtendedBPB struct {
	VolumeSerial uint32
	VolumeLabel  string
	FSType       string
}

// DecodeBootSector reads and decodes sector 0. It fails only if the sector
// itself cannot be read.
func DecodeBootSector(src source.Source) (*BootSector, error) {
	data, err := src.ReadRange(0, SectorSize)
	if err != nil {
		return nil, fmt.Errorf("read boot sector: %w", err)
	}

	var fixed bpbFixed
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("decode BPB: %w", err)
	}

	bs := &BootSector{
		JumpBoot:          fixed.JumpBoot,
		OEMName:           string(fixed.OEMName[:]),
		BytesPerSector:    fixed.BytesPerSector,
		SectorsPerCluster: fixed.SectorsPerCluster,
		ReservedSectors:   fixed.ReservedSectors,
		NumFATs:           fixed.NumFATs,
		RootEntryCount:    fixed.RootEntryCount,
		TotalSectors16:    fixed.TotalSectors16,
		Media:             fixed.Media,
		SectorsPerFAT:     fixed.SectorsPerFAT,
		SectorsPerTrack:   fixed.SectorsPerTrack,
		NumHeads:          fixed.NumHeads,
		HiddenSectors:     fixed.HiddenSectors,
		TotalSectors32:    fixed.TotalSectors32,
		DriveNumber:       data[36],
		BootSignatureByte: data[38],
		Signature:         binary.LittleEndian.Uint16(data[510:512]),
	}

	if bs.BootSignatureByte == ExtendedBootSignature {
		bs.Extended = &ExtendedBPB{
			VolumeSerial: binary.LittleEndian.Uint32(data[39:43]),
			VolumeLabel:  strings.TrimRight(string(data[43:54]), " "),
			FSType:       strings.TrimRight(string(data[54:62]), " "),
		}
	}
	return bs, nil
}

// TotalSectors returns the 16-bit sector count, or the 32-bit field when the
// 16-bit one is zero.
func (b *BootSector) TotalSectors() uint32 {
	if b.TotalSectors16 != 0 {
		return uint32(b.TotalSectors16)
	}
	return b.TotalSectors32
}

// RootDirSectors returns the number of sectors occupied by the fixed root
// directory region.
func (b *BootSector) RootDirSectors() uint32 {
	if b.BytesPerSector == 0 {
		return 0
	}
	return (uint32(b.RootEntryCount)*32 + uint32(b.BytesPerSector) - 1) / uint32(b.BytesPerSector)
}

// FATStartSector returns the first sector of the first FAT copy.
func (b *BootSector) FATStartSector() uint32 { return uint32(b.ReservedSectors) }

// RootDirStartSector returns the first sector of the root directory region,
// immediately after the FAT copies.
func (b *BootSector) RootDirStartSector() uint32 {
	return uint32(b.ReservedSectors) + uint32(b.NumFATs)*uint32(b.SectorsPerFAT)
}

// DataStartSector returns the first sector of the data region.
func (b *BootSector) DataStartSector() uint32 {
	return b.RootDirStartSector() + b.RootDirSectors()
}

// TotalClusters returns the number of data clusters, which determines
// whether the volume is genuinely FAT16.
func (b *BootSector) TotalClusters() uint32 {
	if b.SectorsPerCluster == 0 {
		return 0
	}
	total := b.TotalSectors()
	start := b.DataStartSector()
	if total <= start {
		return 0
	}
	return (total - start) / uint32(b.SectorsPerCluster)
}
