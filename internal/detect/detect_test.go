package detect_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onuse/fsdiag/internal/analyze"
	"github.com/onuse/fsdiag/internal/detect"
	"github.com/onuse/fsdiag/internal/source"
)

func probe(t *testing.T, img []byte) (analyze.Format, error) {
	t.Helper()
	return detect.Detect(source.NewFileSource(bytes.NewReader(img), int64(len(img))))
}

func TestDetect_ExFAT(t *testing.T) {
	img := make([]byte, 4096)
	copy(img[3:11], "EXFAT   ")

	f, err := probe(t, img)
	require.NoError(t, err)
	assert.Equal(t, analyze.FormatExFAT, f)
}

func TestDetect_Ext4(t *testing.T) {
	img := make([]byte, 4096)
	binary.LittleEndian.PutUint16(img[1024+0x38:], 0xEF53)

	f, err := probe(t, img)
	require.NoError(t, err)
	assert.Equal(t, analyze.FormatExt4, f)
}

func TestDetect_Ext4MagicValueElsewhereNotMatched(t *testing.T) {
	// 0xEF53 at byte 1024 is the low word of s_inodes_count, not s_magic;
	// only the s_magic position may match.
	img := make([]byte, 4096)
	binary.LittleEndian.PutUint16(img[1024:], 0xEF53)

	_, err := probe(t, img)
	assert.ErrorIs(t, err, detect.ErrUnknownFormat)
}

func TestDetect_FAT16ByFSType(t *testing.T) {
	img := make([]byte, 4096)
	copy(img[54:62], "FAT16   ")
	binary.LittleEndian.PutUint16(img[510:512], 0xAA55)

	f, err := probe(t, img)
	require.NoError(t, err)
	assert.Equal(t, analyze.FormatFAT16, f)
}

func TestDetect_FAT16ByGeometry(t *testing.T) {
	img := make([]byte, 4096)
	binary.LittleEndian.PutUint16(img[11:13], 512)
	img[16] = 2
	binary.LittleEndian.PutUint16(img[22:24], 64)
	binary.LittleEndian.PutUint16(img[510:512], 0xAA55)

	f, err := probe(t, img)
	require.NoError(t, err)
	assert.Equal(t, analyze.FormatFAT16, f)
}

func TestDetect_ExFATWinsOverSignature(t *testing.T) {
	// An exFAT boot sector also ends in 0xAA55; the name probe must win.
	img := make([]byte, 4096)
	copy(img[3:11], "EXFAT   ")
	binary.LittleEndian.PutUint16(img[510:512], 0xAA55)

	f, err := probe(t, img)
	require.NoError(t, err)
	assert.Equal(t, analyze.FormatExFAT, f)
}

func TestDetect_RejectsFAT32Layout(t *testing.T) {
	// FAT32 zeroes the 16-bit sectors-per-FAT field.
	img := make([]byte, 4096)
	binary.LittleEndian.PutUint16(img[11:13], 512)
	img[16] = 2
	binary.LittleEndian.PutUint16(img[22:24], 0)
	binary.LittleEndian.PutUint16(img[510:512], 0xAA55)

	_, err := probe(t, img)
	assert.ErrorIs(t, err, detect.ErrUnknownFormat)
}

func TestDetect_Unknown(t *testing.T) {
	_, err := probe(t, make([]byte, 4096))
	assert.ErrorIs(t, err, detect.ErrUnknownFormat)
}

func TestDetect_SmallSourceSkipsExt4Probe(t *testing.T) {
	img := make([]byte, 512)
	copy(img[3:11], "EXFAT   ")

	f, err := probe(t, img)
	require.NoError(t, err)
	assert.Equal(t, analyze.FormatExFAT, f)
}

func TestDetect_TooSmallToProbe(t *testing.T) {
	_, err := probe(t, make([]byte, 100))
	assert.Error(t, err)
}
