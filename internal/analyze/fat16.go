package analyze

import (
	"github.com/onuse/fsdiag/internal/fat16"
	"github.com/onuse/fsdiag/internal/source"
)

// FAT16Data is the decoded record set of one FAT16 analysis.
type FAT16Data struct {
	Boot    *fat16.BootSector
	FAT     []uint16
	RootDir []fat16.DirEntry
}

// FAT16 decodes and validates a FAT16 volume's metadata.
func FAT16(src source.Source) (*Result, error) {
	boot, err := fat16.DecodeBootSector(src)
	if err != nil {
		return nil, &DecodeError{Format: FormatFAT16, Structure: "boot sector", Err: err}
	}

	data := &FAT16Data{Boot: boot}
	res := &Result{Format: FormatFAT16, FAT16: data}
	var l issueList

	if boot.Signature != fat16.BootSignature {
		l.critical("boot sector", "boot signature 0x%04X, want 0x%04X", boot.Signature, uint16(fat16.BootSignature))
	}

	geometryOK := true
	switch boot.BytesPerSector {
	case 0:
		l.critical("boot sector", "bytes per sector is zero")
		geometryOK = false
	case 512, 1024, 2048, 4096:
	default:
		l.warning("boot sector", "unusual bytes per sector %d", boot.BytesPerSector)
	}
	if boot.ReservedSectors < 1 {
		l.critical("boot sector", "reserved sector count %d, want at least 1", boot.ReservedSectors)
		geometryOK = false
	}
	if boot.NumFATs != 1 && boot.NumFATs != 2 {
		l.critical("boot sector", "number of FATs %d, want 1 or 2", boot.NumFATs)
	}
	if boot.SectorsPerFAT == 0 {
		l.critical("boot sector", "sectors per FAT is zero")
		geometryOK = false
	}
	if boot.RootEntryCount == 0 {
		l.critical("boot sector", "root entry count is zero")
		geometryOK = false
	} else if boot.RootEntryCount != 512 {
		l.warning("boot sector", "root entry count %d, commonly 512", boot.RootEntryCount)
	}
	if boot.TotalSectors() == 0 {
		l.critical("boot sector", "both total-sector fields are zero")
		geometryOK = false
	}
	if boot.Media != 0xF0 && boot.Media < 0xF8 {
		l.warning("boot sector", "media descriptor 0x%02X, want 0xF0 or 0xF8-0xFF", boot.Media)
	}

	if geometryOK {
		switch clusters := boot.TotalClusters(); {
		case clusters < fat16.MinClusters:
			l.critical("boot sector", "cluster count %d below FAT16 range (FAT12 layout?)", clusters)
		case clusters > fat16.MaxClusters:
			l.critical("boot sector", "cluster count %d above FAT16 range (FAT32 layout?)", clusters)
		}

		if fat, err := fat16.ReadFAT(src, boot, fatPreview); err != nil {
			l.critical("FAT", "cannot read: %v", err)
		} else {
			data.FAT = fat
			if want := 0xFF00 | uint16(boot.Media); fat[0] != want {
				l.warning("FAT", "entry 0 is 0x%04X, want 0x%04X (media descriptor)", fat[0], want)
			}
			if fat[1] < fat16.EndOfChainMin {
				l.warning("FAT", "entry 1 is 0x%04X, want an end-of-chain marker", fat[1])
			}
		}

		if entries, err := fat16.ReadRootDirectory(src, boot); err != nil {
			l.critical("root directory", "cannot read: %v", err)
		} else {
			data.RootDir = entries
		}
	}

	addFAT16Info(res, data)
	res.Issues = l.issues
	return res, nil
}

func addFAT16Info(res *Result, data *FAT16Data) {
	boot := data.Boot
	res.addInfof("OEM name: %q", boot.OEMName)
	res.addInfof("geometry: %d bytes/sector, %d sectors/cluster, %d total sectors",
		boot.BytesPerSector, boot.SectorsPerCluster, boot.TotalSectors())
	res.addInfof("layout: FAT at sector %d, root directory at sector %d, data at sector %d",
		boot.FATStartSector(), boot.RootDirStartSector(), boot.DataStartSector())
	res.addInfof("clusters: %d", boot.TotalClusters())
	if ext := boot.Extended; ext != nil {
		res.addInfof("volume serial: 0x%08X, label %q, fs type %q", ext.VolumeSerial, ext.VolumeLabel, ext.FSType)
	}
}
