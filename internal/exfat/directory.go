package exfat

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/onuse/fsdiag/internal/source"
)

// Directory entry type bytes.
const (
	TypeEndOfDirectory   = 0x00
	TypeAllocationBitmap = 0x81
	TypeUpcaseTable      = 0x82
	TypeVolumeLabel      = 0x83
	TypeFileEntry        = 0x85
	TypeVolumeGUID       = 0xA0
	TypeStreamExtension  = 0xC0
	TypeFileName         = 0xC1
)

const (
	entrySize = 32

	// maxRootEntries bounds root directory decoding to one 512-byte sector
	// worth of slots, matching how much of the root is diagnostically
	// interesting (the bookkeeping entries all come first).
	maxRootEntries = 16
)

// DirEntry is one decoded 32-byte directory entry. Each variant carries only
// the fields meaningful to it; unrecognized type bytes decode to Unknown
// rather than aborting the rest of the directory.
type DirEntry interface {
	// TypeByte returns the raw entry type byte.
	TypeByte() byte
}

// VolumeLabel is a volume label entry (0x83).
type VolumeLabel struct {
	CharCount uint8
	Label     string
}

// AllocationBitmap is an allocation bitmap entry (0x81).
type AllocationBitmap struct {
	FirstCluster uint32
	DataLength   uint64
}

// UpcaseTable is an up-case table entry (0x82).
type UpcaseTable struct {
	TableChecksum uint32
	FirstCluster  uint32
	DataLength    uint64
}

// VolumeGUID is a volume GUID entry (0xA0).
type VolumeGUID struct {
	GUID [16]byte
}

// FileEntry is a file directory entry (0x85).
type FileEntry struct {
	SecondaryCount uint8
	Attributes     uint16
}

// StreamExtension is a stream extension entry (0xC0).
type StreamExtension struct {
	Flags        uint8
	NameLength   uint8
	FirstCluster uint32
	DataLength   uint64
}

// FileName is a file name fragment entry (0xC1), up to 15 UTF-16 units.
type FileName struct {
	Fragment string
}

// Unknown is an entry with an unrecognized type byte.
type Unknown struct {
	Type byte
}

func (VolumeLabel) TypeByte() byte      { return TypeVolumeLabel }
func (AllocationBitmap) TypeByte() byte { return TypeAllocationBitmap }
func (UpcaseTable) TypeByte() byte      { return TypeUpcaseTable }
func (VolumeGUID) TypeByte() byte       { return TypeVolumeGUID }
func (FileEntry) TypeByte() byte        { return TypeFileEntry }
func (StreamExtension) TypeByte() byte  { return TypeStreamExtension }
func (FileName) TypeByte() byte         { return TypeFileName }
func (u Unknown) TypeByte() byte        { return u.Type }

// ReadRootDirectory decodes the immediate entries of the root directory,
// stopping at the end-of-directory marker or after maxRootEntries slots.
func ReadRootDirectory(src source.Source, boot *BootSector) ([]DirEntry, error) {
	offset := boot.RootDirectoryOffset()
	data, err := src.ReadRange(offset, maxRootEntries*entrySize)
	if err != nil {
		return nil, fmt.Errorf("read root directory: %w", err)
	}

	var entries []DirEntry
	for i := 0; i < maxRootEntries; i++ {
		slot := data[i*entrySize : (i+1)*entrySize]
		if slot[0] == TypeEndOfDirectory {
			break
		}
		entries = append(entries, decodeEntry(slot))
	}
	return entries, nil
}

func decodeEntry(slot []byte) DirEntry {
	switch slot[0] {
	case TypeVolumeLabel:
		count := slot[1]
		if count > 11 {
			count = 11
		}
		return VolumeLabel{CharCount: slot[1], Label: decodeUTF16(slot[2 : 2+int(count)*2])}
	case TypeAllocationBitmap:
		return AllocationBitmap{
			FirstCluster: binary.LittleEndian.Uint32(slot[20:24]),
			DataLength:   binary.LittleEndian.Uint64(slot[24:32]),
		}
	case TypeUpcaseTable:
		return UpcaseTable{
			TableChecksum: binary.LittleEndian.Uint32(slot[4:8]),
			FirstCluster:  binary.LittleEndian.Uint32(slot[20:24]),
			DataLength:    binary.LittleEndian.Uint64(slot[24:32]),
		}
	case TypeVolumeGUID:
		var g VolumeGUID
		copy(g.GUID[:], slot[6:22])
		return g
	case TypeFileEntry:
		return FileEntry{
			SecondaryCount: slot[1],
			Attributes:     binary.LittleEndian.Uint16(slot[4:6]),
		}
	case TypeStreamExtension:
		return StreamExtension{
			Flags:        slot[1],
			NameLength:   slot[3],
			FirstCluster: binary.LittleEndian.Uint32(slot[20:24]),
			DataLength:   binary.LittleEndian.Uint64(slot[24:32]),
		}
	case TypeFileName:
		return FileName{Fragment: decodeUTF16(slot[2:32])}
	default:
		return Unknown{Type: slot[0]}
	}
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
