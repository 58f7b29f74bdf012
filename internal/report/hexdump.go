// Package report renders analysis and comparison results for display. The
// core packages produce values; everything about how they look on a
// terminal lives here.
package report

import (
	"fmt"
	"io"
)

const hexdumpWidth = 16

// Hexdump writes data in the canonical 16-bytes-per-line layout: offset
// column, hex bytes split into two groups of eight, and an ASCII gutter
// with non-printable bytes shown as dots. base is added to the displayed
// offsets so a dump of a mid-volume region shows volume-absolute positions.
func Hexdump(w io.Writer, data []byte, base int64) error {
	for off := 0; off < len(data); off += hexdumpWidth {
		end := off + hexdumpWidth
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		if _, err := fmt.Fprintf(w, "%08x  ", base+int64(off)); err != nil {
			return err
		}
		for i := 0; i < hexdumpWidth; i++ {
			if i == 8 {
				if _, err := io.WriteString(w, " "); err != nil {
					return err
				}
			}
			if i < len(line) {
				if _, err := fmt.Fprintf(w, "%02x ", line[i]); err != nil {
					return err
				}
			} else if _, err := io.WriteString(w, "   "); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " |%s|\n", asciiGutter(line)); err != nil {
			return err
		}
	}
	return nil
}

func asciiGutter(line []byte) string {
	out := make([]byte, len(line))
	for i, b := range line {
		if b >= 0x20 && b < 0x7F {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
