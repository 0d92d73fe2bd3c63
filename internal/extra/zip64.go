package extra

import (
	"encoding/binary"
	"fmt"
)

const (
	sentinel16 = 0xFFFF
	sentinel32 = 0xFFFFFFFF
)

// Zip64Fields holds the subset of ZIP64 values present in an extra block.
// Per , the ZIP64 extra only carries 64-bit values for fields
// whose 32/16-bit representation in the fixed header was the sentinel, in
// a fixed order: uncompressed size, compressed size, disk offset, disk
// number.
type Zip64Fields struct {
	UncompressedSize *uint64
	CompressedSize   *uint64
	DiskOffset       *uint64
	DiskNumber       *uint32
}

// ParseZip64 decodes a ZIP64 extra block's payload, given which fixed-size
// fields were sentinel'd and therefore have 64-bit values present in data.
func ParseZip64(data []byte, needUncompressed, needCompressed, needOffset, needDisk bool) (Zip64Fields, error) {
	var f Zip64Fields
	read64 := func(name string) (uint64, error) {
		if len(data) < 8 {
			return 0, fmt.Errorf("extra: zip64 block too short for %s", name)
		}
		v := binary.LittleEndian.Uint64(data[:8])
		data = data[8:]
		return v, nil
	}
	if needUncompressed {
		v, err := read64("uncompressed size")
		if err != nil {
			return f, err
		}
		f.UncompressedSize = &v
	}
	if needCompressed {
		v, err := read64("compressed size")
		if err != nil {
			return f, err
		}
		f.CompressedSize = &v
	}
	if needOffset {
		v, err := read64("disk offset")
		if err != nil {
			return f, err
		}
		f.DiskOffset = &v
	}
	if needDisk {
		if len(data) < 4 {
			return f, fmt.Errorf("extra: zip64 block too short for disk number")
		}
		v := binary.LittleEndian.Uint32(data[:4])
		f.DiskNumber = &v
	}
	return f, nil
}

// BuildZip64 serializes the present fields in spec order.
func BuildZip64(f Zip64Fields) []byte {
	var out []byte
	put64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		out = append(out, b[:]...)
	}
	if f.UncompressedSize != nil {
		put64(*f.UncompressedSize)
	}
	if f.CompressedSize != nil {
		put64(*f.CompressedSize)
	}
	if f.DiskOffset != nil {
		put64(*f.DiskOffset)
	}
	if f.DiskNumber != nil {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], *f.DiskNumber)
		out = append(out, b[:]...)
	}
	return out
}

// IsSentinel16 reports whether a 16-bit header field signals that its real
// value lives in the ZIP64 extra.
func IsSentinel16(v uint16) bool { return v == sentinel16 }

// IsSentinel32 reports whether a 32-bit header field signals that its real
// value lives in the ZIP64 extra.
func IsSentinel32(v uint32) bool { return v == sentinel32 }

// Sentinel16 is the 0xFFFF placeholder value.
const Sentinel16 uint16 = sentinel16

// Sentinel32 is the 0xFFFFFFFF placeholder value.
const Sentinel32 uint32 = sentinel32
