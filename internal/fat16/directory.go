package fat16

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/onuse/fsdiag/internal/source"
)

// Directory entry markers and attribute bits.
const (
	markerEndOfDirectory = 0x00
	markerDeleted        = 0xE5
	markerKanjiLead      = 0x05

	AttrReadOnly    = 0x01
	AttrHidden      = 0x02
	AttrSystem      = 0x04
	AttrVolumeLabel = 0x08
	AttrDirectory   = 0x10
	AttrArchive     = 0x20
	attrLongName    = 0x0F
)

const (
	entrySize = 32

	// maxRootEntries bounds root directory decoding to the first sector's
	// worth of slots; formatting bugs show up in the leading entries.
	maxRootEntries = 16
)

// DirEntry is one decoded 32-byte root directory entry.
type DirEntry interface {
	// FirstByte returns the raw first byte of the entry.
	FirstByte() byte
}

// ShortName is a regular 8.3 directory entry.
type ShortName struct {
	Name         string
	Ext          string
	Attributes   uint8
	FirstCluster uint16
	Size         uint32

	firstByte byte
}

// LongName is one fragment of a long filename chain.
type LongName struct {
	Sequence uint8
	Last     bool
	Checksum uint8

	firstByte byte
}

// VolumeLabelEntry is a volume label entry (attribute 0x08).
type VolumeLabelEntry struct {
	Label string

	firstByte byte
}

// Deleted is an entry whose slot was freed (first byte 0xE5).
type Deleted struct{}

func (s ShortName) FirstByte() byte        { return s.firstByte }
func (l LongName) FirstByte() byte         { return l.firstByte }
func (v VolumeLabelEntry) FirstByte() byte { return v.firstByte }
func (Deleted) FirstByte() byte            { return markerDeleted }

// DisplayName returns the 8.3 name joined with a dot when an extension is
// present.
func (s ShortName) DisplayName() string {
	if s.Ext == "" {
		return s.Name
	}
	return s.Name + "." + s.Ext
}

// ReadRootDirectory decodes the leading entries of the fixed root directory
// region, stopping at the end-of-directory marker or after maxRootEntries
// slots. Decoding never reads past the end marker.
func ReadRootDirectory(src source.Source, boot *BootSector) ([]DirEntry, error) {
	offset := int64(boot.RootDirStartSector()) * int64(boot.BytesPerSector)
	data, err := src.ReadRange(offset, maxRootEntries*entrySize)
	if err != nil {
		return nil, fmt.Errorf("read root directory: %w", err)
	}

	var entries []DirEntry
	for i := 0; i < maxRootEntries; i++ {
		slot := data[i*entrySize : (i+1)*entrySize]
		if slot[0] == markerEndOfDirectory {
			break
		}
		entries = append(entries, decodeEntry(slot))
	}
	return entries, nil
}

func decodeEntry(slot []byte) DirEntry {
	first := slot[0]
	if first == markerDeleted {
		return Deleted{}
	}
	if first == markerKanjiLead {
		first = markerDeleted
	}

	if slot[11] == attrLongName {
		return LongName{
			Sequence:  slot[0] & 0x3F,
			Last:      slot[0]&0x40 != 0,
			Checksum:  slot[13],
			firstByte: slot[0],
		}
	}

	name := make([]byte, 8)
	copy(name, slot[0:8])
	name[0] = first
	ext := slot[8:11]
	attrs := slot[11]

	if attrs&AttrVolumeLabel != 0 {
		label := strings.TrimSpace(string(name) + string(ext))
		return VolumeLabelEntry{Label: label, firstByte: slot[0]}
	}

	return ShortName{
		Name:         strings.TrimRight(string(name), " "),
		Ext:          strings.TrimRight(string(ext), " "),
		Attributes:   attrs,
		FirstCluster: binary.LittleEndian.Uint16(slot[26:28]),
		Size:         binary.LittleEndian.Uint32(slot[28:32]),
		firstByte:    slot[0],
	}
}
