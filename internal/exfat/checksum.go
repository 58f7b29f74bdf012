package exfat

import (
	"encoding/binary"
	"fmt"

	"github.com/onuse/fsdiag/internal/source"
)

// Byte positions excluded from the boot checksum. VolumeFlags and
// PercentInUse legitimately change between a freshly written and a mounted
// volume, so the on-disk format leaves them out of the accumulation.
const (
	volumeFlagsOffset   = 106 // and 107
	percentInUseOffset  = 112
	bootRegionByteCount = BootRegionSectors * SectorSize
)

// BootChecksum computes the 32-bit rolling checksum over the boot region
// (sectors 0-10, 5632 bytes), folding each byte with a rotate-right-and-add
// recurrence and skipping the VolumeFlags and PercentInUse positions.
func BootChecksum(region []byte) uint32 {
	var checksum uint32
	for i, b := range region {
		if i == volumeFlagsOffset || i == volumeFlagsOffset+1 || i == percentInUseOffset {
			continue
		}
		if checksum&1 != 0 {
			checksum = 0x80000000 + (checksum >> 1) + uint32(b)
		} else {
			checksum = (checksum >> 1) + uint32(b)
		}
	}
	return checksum
}

// ChecksumReport is the outcome of verifying the boot region against the
// stored checksum sector.
type ChecksumReport struct {
	Computed   uint32
	Stored     uint32
	Match      bool
	Replicated bool // every 4-byte word of sector 11 equals the first
}

// VerifyBootChecksum reads sectors 0-11, recomputes the boot checksum, and
// compares it with the stored value. The checksum sector is expected to
// repeat the 4-byte checksum across its whole length; uneven replication is
// reported as a secondary signal of a malformed checksum sector.
func VerifyBootChecksum(src source.Source) (*ChecksumReport, error) {
	region, err := src.ReadRange(0, bootRegionByteCount)
	if err != nil {
		return nil, fmt.Errorf("read boot region: %w", err)
	}
	sector, err := src.ReadRange(ChecksumSector*SectorSize, SectorSize)
	if err != nil {
		return nil, fmt.Errorf("read checksum sector: %w", err)
	}

	rep := &ChecksumReport{
		Computed:   BootChecksum(region),
		Stored:     binary.LittleEndian.Uint32(sector[0:4]),
		Replicated: true,
	}
	rep.Match = rep.Computed == rep.Stored

	first := sector[0:4]
	for off := 4; off < SectorSize; off += 4 {
		if !bytesEqual4(sector[off:off+4], first) {
			rep.Replicated = false
			break
		}
	}
	return rep, nil
}

func bytesEqual4(a, b []byte) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2] && a[3] == b[3]
}
