package exfat

import (
	"encoding/binary"
	"fmt"

	"github.com/onuse/fsdiag/internal/source"
)

// Special 32-bit FAT entry values.
const (
	EntryFree       = 0x00000000
	EntryBadCluster = 0xFFFFFFF7
	EntryEndOfChain = 0xFFFFFFFF

	// MediaDescriptorEntry is the mandated value of FAT[0].
	MediaDescriptorEntry = 0xFFFFFFF8
)

// EntryClass categorizes a FAT entry value.
type EntryClass int

const (
	ClassFree EntryClass = iota
	ClassChain
	ClassBad
	ClassEndOfChain
	ClassReserved
)

func (c EntryClass) String() string {
	switch c {
	case ClassFree:
		return "free"
	case ClassChain:
		return "next cluster"
	case ClassBad:
		return "bad cluster"
	case ClassEndOfChain:
		return "end of chain"
	case ClassReserved:
		return "reserved"
	default:
		return "unknown"
	}
}

// Classify categorizes a FAT entry value. Entries 0 and 1 carry mandated
// constants (media descriptor, end-of-chain marker) and are judged by the
// caller against MediaDescriptorEntry / EntryEndOfChain instead.
func Classify(entry uint32) EntryClass {
	switch {
	case entry == EntryFree:
		return ClassFree
	case entry == EntryBadCluster:
		return ClassBad
	case entry == EntryEndOfChain:
		return ClassEndOfChain
	case entry >= 2 && entry < EntryBadCluster:
		return ClassChain
	default:
		return ClassReserved
	}
}

// ReadFAT decodes the first n entries of the first FAT copy.
func ReadFAT(src source.Source, boot *BootSector, n int) ([]uint32, error) {
	data, err := src.ReadRange(boot.FATByteOffset(), n*4)
	if err != nil {
		return nil, fmt.Errorf("read FAT: %w", err)
	}
	entries := make([]uint32, n)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return entries, nil
}
