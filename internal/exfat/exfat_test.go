package exfat_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onuse/fsdiag/internal/exfat"
	"github.com/onuse/fsdiag/internal/source"
)

// buildImage assembles a minimal exFAT image: boot region, checksum sector,
// one FAT sector, and a root directory cluster.
//
// Geometry: 512-byte sectors, 1 sector per cluster, FAT at sector 24,
// cluster heap at sector 40, root directory in cluster 4.
func buildImage(t *testing.T) []byte {
	t.Helper()
	img := make([]byte, 64*1024)

	boot := img[0:512]
	copy(boot[0:3], []byte{0xEB, 0x76, 0x90})
	copy(boot[3:11], "EXFAT   ")
	binary.LittleEndian.PutUint64(boot[64:72], 0)           // partition offset
	binary.LittleEndian.PutUint64(boot[72:80], 128*1024)    // volume length
	binary.LittleEndian.PutUint32(boot[80:84], 24)          // FAT offset
	binary.LittleEndian.PutUint32(boot[84:88], 8)           // FAT length
	binary.LittleEndian.PutUint32(boot[88:92], 40)          // cluster heap offset
	binary.LittleEndian.PutUint32(boot[92:96], 100)         // cluster count
	binary.LittleEndian.PutUint32(boot[96:100], 4)          // first cluster of root
	binary.LittleEndian.PutUint32(boot[100:104], 0xCAFE01)  // serial
	binary.LittleEndian.PutUint16(boot[104:106], 0x0100)    // revision
	binary.LittleEndian.PutUint16(boot[106:108], 0x0000)    // volume flags
	boot[108] = 9    // 512 bytes per sector
	boot[109] = 0    // 1 sector per cluster
	boot[110] = 1    // number of FATs
	boot[111] = 0x80 // drive select
	boot[112] = 3    // percent in use
	binary.LittleEndian.PutUint16(boot[510:512], 0xAA55)

	// Checksum sector: computed value replicated across sector 11.
	sum := exfat.BootChecksum(img[0 : 11*512])
	for off := 11 * 512; off < 12*512; off += 4 {
		binary.LittleEndian.PutUint32(img[off:off+4], sum)
	}

	// FAT[0..3]
	fat := img[24*512:]
	binary.LittleEndian.PutUint32(fat[0:4], exfat.MediaDescriptorEntry)
	binary.LittleEndian.PutUint32(fat[4:8], exfat.EntryEndOfChain)
	binary.LittleEndian.PutUint32(fat[8:12], exfat.EntryEndOfChain) // bitmap cluster
	binary.LittleEndian.PutUint32(fat[12:16], exfat.EntryEndOfChain)

	// Root directory at cluster 4: heap offset 40 + (4-2) sectors.
	root := img[(40+2)*512:]
	writeRootEntries(root)

	return img
}

func writeRootEntries(root []byte) {
	// Volume label "DATA".
	root[0] = exfat.TypeVolumeLabel
	root[1] = 4
	copy(root[2:], []byte{'D', 0, 'A', 0, 'T', 0, 'A', 0})

	// Allocation bitmap at cluster 2.
	e := root[32:]
	e[0] = exfat.TypeAllocationBitmap
	binary.LittleEndian.PutUint32(e[20:24], 2)
	binary.LittleEndian.PutUint64(e[24:32], 13)

	// Up-case table at cluster 3.
	e = root[64:]
	e[0] = exfat.TypeUpcaseTable
	binary.LittleEndian.PutUint32(e[4:8], 0xE619D30D)
	binary.LittleEndian.PutUint32(e[20:24], 3)
	binary.LittleEndian.PutUint64(e[24:32], 5836)

	// Volume GUID.
	e = root[96:]
	e[0] = exfat.TypeVolumeGUID
	for i := 0; i < 16; i++ {
		e[6+i] = byte(i + 1)
	}

	// Slot 4 left as an unknown vendor entry; end marker at slot 5.
	root[128] = 0x7F
	root[160] = exfat.TypeEndOfDirectory
}

func imageSource(t *testing.T, img []byte) source.Source {
	t.Helper()
	return source.NewFileSource(bytes.NewReader(img), int64(len(img)))
}

func TestDecodeBootSector(t *testing.T) {
	img := buildImage(t)
	boot, err := exfat.DecodeBootSector(imageSource(t, img))
	require.NoError(t, err)

	assert.Equal(t, "EXFAT   ", boot.FileSystemNameString())
	assert.Equal(t, uint32(24), boot.FATOffset)
	assert.Equal(t, uint32(40), boot.ClusterHeapOffset)
	assert.Equal(t, uint32(100), boot.ClusterCount)
	assert.Equal(t, uint32(4), boot.FirstClusterOfRootDirectory)
	assert.Equal(t, uint16(0xAA55), boot.BootSignature)
	assert.Equal(t, int64(512), boot.BytesPerSector())
	assert.Equal(t, int64(1), boot.SectorsPerCluster())
	assert.True(t, boot.MustBeZeroClean())
	assert.Equal(t, int64((40+2)*512), boot.RootDirectoryOffset())
}

func TestDecodeBootSector_ReadFailure(t *testing.T) {
	src := source.NewFileSource(bytes.NewReader(make([]byte, 100)), 100)
	_, err := exfat.DecodeBootSector(src)
	var re *source.ReadError
	require.ErrorAs(t, err, &re)
}

func TestBootChecksum_Deterministic(t *testing.T) {
	img := buildImage(t)
	region := img[0 : 11*512]

	first := exfat.BootChecksum(region)
	second := exfat.BootChecksum(region)
	assert.Equal(t, first, second)
}

func TestBootChecksum_ExcludedBytesIgnored(t *testing.T) {
	img := buildImage(t)
	region := make([]byte, 11*512)
	copy(region, img)

	base := exfat.BootChecksum(region)

	// VolumeFlags (106-107) and PercentInUse (112) must not influence it.
	region[106] = 0xFF
	region[107] = 0xFF
	region[112] = 99
	assert.Equal(t, base, exfat.BootChecksum(region))
}

func TestBootChecksum_SensitiveToOtherBytes(t *testing.T) {
	img := buildImage(t)
	region := make([]byte, 11*512)
	copy(region, img)

	base := exfat.BootChecksum(region)
	region[100] ^= 0x01
	assert.NotEqual(t, base, exfat.BootChecksum(region))
}

func TestVerifyBootChecksum_Match(t *testing.T) {
	img := buildImage(t)
	rep, err := exfat.VerifyBootChecksum(imageSource(t, img))
	require.NoError(t, err)

	assert.True(t, rep.Match)
	assert.True(t, rep.Replicated)
	assert.Equal(t, rep.Computed, rep.Stored)
}

func TestVerifyBootChecksum_Mismatch(t *testing.T) {
	img := buildImage(t)
	img[200] ^= 0xFF // non-excluded boot byte

	rep, err := exfat.VerifyBootChecksum(imageSource(t, img))
	require.NoError(t, err)
	assert.False(t, rep.Match)
}

func TestVerifyBootChecksum_ReplicationBroken(t *testing.T) {
	img := buildImage(t)
	img[11*512+100] ^= 0x01 // corrupt one word of the checksum sector

	rep, err := exfat.VerifyBootChecksum(imageSource(t, img))
	require.NoError(t, err)
	assert.True(t, rep.Match, "first word still matches")
	assert.False(t, rep.Replicated)
}

func TestReadFAT(t *testing.T) {
	img := buildImage(t)
	boot, err := exfat.DecodeBootSector(imageSource(t, img))
	require.NoError(t, err)

	entries, err := exfat.ReadFAT(imageSource(t, img), boot, 4)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, uint32(exfat.MediaDescriptorEntry), entries[0])
	assert.Equal(t, uint32(exfat.EntryEndOfChain), entries[1])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		entry uint32
		want  exfat.EntryClass
	}{
		{0x00000000, exfat.ClassFree},
		{0x00000005, exfat.ClassChain},
		{0xFFFFFFF7, exfat.ClassBad},
		{0xFFFFFFFF, exfat.ClassEndOfChain},
		{0xFFFFFFF9, exfat.ClassReserved},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, exfat.Classify(tt.entry))
		})
	}
}

func TestReadRootDirectory(t *testing.T) {
	img := buildImage(t)
	boot, err := exfat.DecodeBootSector(imageSource(t, img))
	require.NoError(t, err)

	entries, err := exfat.ReadRootDirectory(imageSource(t, img), boot)
	require.NoError(t, err)
	require.Len(t, entries, 5, "decoding stops at the end-of-directory marker")

	label, ok := entries[0].(exfat.VolumeLabel)
	require.True(t, ok)
	assert.Equal(t, "DATA", label.Label)

	bitmap, ok := entries[1].(exfat.AllocationBitmap)
	require.True(t, ok)
	assert.Equal(t, uint32(2), bitmap.FirstCluster)
	assert.Equal(t, uint64(13), bitmap.DataLength)

	upcase, ok := entries[2].(exfat.UpcaseTable)
	require.True(t, ok)
	assert.Equal(t, uint32(0xE619D30D), upcase.TableChecksum)
	assert.Equal(t, uint32(3), upcase.FirstCluster)

	guid, ok := entries[3].(exfat.VolumeGUID)
	require.True(t, ok)
	assert.Equal(t, byte(1), guid.GUID[0])

	unknown, ok := entries[4].(exfat.Unknown)
	require.True(t, ok, "unrecognized type bytes decode to Unknown, not an error")
	assert.Equal(t, byte(0x7F), unknown.TypeByte())
}
