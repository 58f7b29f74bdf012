// Package detect probes a byte source for the magic values of the supported
// formats so callers can skip an explicit --format flag. Probing reads only
// the boot sector and the ext4 superblock region.
package detect

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/onuse/fsdiag/internal/analyze"
	"github.com/onuse/fsdiag/internal/exfat"
	"github.com/onuse/fsdiag/internal/ext4"
	"github.com/onuse/fsdiag/internal/fat16"
	"github.com/onuse/fsdiag/internal/source"
)

// ErrUnknownFormat is returned when no probe matches.
var ErrUnknownFormat = errors.New("no recognized filesystem signature")

// Detect probes src and returns the first matching format. exFAT is probed
// before FAT16 because an exFAT boot sector also carries the 0xAA55
// signature a FAT16 heuristic would accept.
func Detect(src source.Source) (analyze.Format, error) {
	boot, err := src.ReadRange(0, 512)
	if err != nil {
		return analyze.FormatUnknown, err
	}

	if bytes.Equal(boot[3:11], []byte(exfat.FileSystemName)) {
		return analyze.FormatExFAT, nil
	}

	// The ext4 region sits past sector 0; a source too small for it simply
	// fails this probe, not the whole detection. s_magic lives 0x38 bytes
	// into the superblock.
	if sb, err := src.ReadRange(ext4.SuperblockOffset+0x38, 2); err == nil {
		if binary.LittleEndian.Uint16(sb) == ext4.Magic {
			return analyze.FormatExt4, nil
		}
	}

	if looksLikeFAT16(boot) {
		return analyze.FormatFAT16, nil
	}
	return analyze.FormatUnknown, ErrUnknownFormat
}

// looksLikeFAT16 accepts a boot sector that either names FAT16 in its
// extended BPB or carries the boot signature with a plausible BPB geometry.
func looksLikeFAT16(boot []byte) bool {
	if binary.LittleEndian.Uint16(boot[510:512]) != fat16.BootSignature {
		return false
	}
	if bytes.Equal(boot[54:59], []byte("FAT16")) {
		return true
	}

	bps := binary.LittleEndian.Uint16(boot[11:13])
	switch bps {
	case 512, 1024, 2048, 4096:
	default:
		return false
	}
	numFATs := boot[16]
	if numFATs != 1 && numFATs != 2 {
		return false
	}
	// FAT16 keeps its per-FAT size in the 16-bit field; FAT32 zeroes it.
	return binary.LittleEndian.Uint16(boot[22:24]) != 0
}
