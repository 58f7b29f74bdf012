package fat16

import (
	"encoding/binary"
	"fmt"

	"github.com/onuse/fsdiag/internal/source"
)

// Special 16-bit FAT entry values.
const (
	EntryFree       = 0x0000
	EntryReserved1  = 0x0001
	EntryBadCluster = 0xFFF7

	// EndOfChainMin is the lowest end-of-chain marker; FAT[1] must be at
	// least this value.
	EndOfChainMin = 0xFFF8
)

// Expected FAT[0] values (media descriptor with high bits set).
const (
	MediaFixed     = 0xFFF8
	MediaRemovable = 0xFFF0
)

// EntryClass categorizes a FAT16 entry value.
type EntryClass int

const (
	ClassFree EntryClass = iota
	ClassReserved
	ClassChain
	ClassBad
	ClassEndOfChain
)

func (c EntryClass) String() string {
	switch c {
	case ClassFree:
		return "free cluster"
	case ClassReserved:
		return "reserved"
	case ClassChain:
		return "next cluster in chain"
	case ClassBad:
		return "bad cluster"
	case ClassEndOfChain:
		return "end of chain (EOF)"
	default:
		return "unknown"
	}
}

// Classify categorizes a FAT16 entry value. Entries 0 and 1 carry mandated
// constants and are judged against MediaFixed/MediaRemovable and
// EndOfChainMin by the caller.
func Classify(entry uint16) EntryClass {
	switch {
	case entry == EntryFree:
		return ClassFree
	case entry == EntryReserved1:
		return ClassReserved
	case entry >= 0x0002 && entry <= 0xFFEF:
		return ClassChain
	case entry >= 0xFFF0 && entry <= 0xFFF6:
		return ClassReserved
	case entry == EntryBadCluster:
		return ClassBad
	default:
		return ClassEndOfChain
	}
}

// ReadFAT decodes the first n entries of the first FAT copy.
func ReadFAT(src source.Source, boot *BootSector, n int) ([]uint16, error) {
	offset := int64(boot.FATStartSector()) * int64(boot.BytesPerSector)
	data, err := src.ReadRange(offset, n*2)
	if err != nil {
		return nil, fmt.Errorf("read FAT: %w", err)
	}
	entries := make([]uint16, n)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint16(data[i*2 : i*2+2])
	}
	return entries, nil
}
