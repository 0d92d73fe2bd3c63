// Package centraldir implements the end-of-central-directory search, the
// ZIP64 EOCD upgrade, offset-shift repair, and central-directory buffering
// for write, generalizing nguyengg-xy3/zip/scan/eocd.go's windowed
// backward EOCD scan and martin-sucha-zipserve's writer.go CD/ZIP64/EOCD
// emission sequencing into a combined read+write engine.
package centraldir

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arlyn/zipcore/internal/zipfmt"
)

// ErrNoEOCDFound is returned when the tail scan exhausts its search window
// without finding an EOCD signature; distinct from an I/O error.
var ErrNoEOCDFound = errors.New("centraldir: no EOCD signature found")

// ErrFormat signals that the central-directory bookkeeping is internally
// inconsistent (a ZIP64 sentinel with no locator, a missing CD signature at
// either candidate offset, and so on).
var ErrFormat = errors.New("centraldir: inconsistent central directory")

const (
	maxCommentLen  = zipfmt.Uint16Max
	searchWindow   = 1024
	searchOverlap  = 4
	maxSearchBytes = int64(maxCommentLen + zipfmt.EOCDLen)
)

// EOCDInfo is the parsed fixed region of the 32-bit EOCD record.
type EOCDInfo struct {
	DiskNumber    uint16
	CDDiskOffset  uint16
	CDCountOnDisk uint16
	CDCount       uint16
	CDSize        uint32
	CDOffset      uint32
	Comment       string
}

// FindEOCD scans the tail of r (an io.ReadSeeker positioned anywhere; its
// offset is not preserved) for the EOCD signature: reads
// overlapping 1024+4-byte windows backward from the end, the last match in
// the file wins.
func FindEOCD(r io.ReadSeeker) (eocdOffset int64, info EOCDInfo, err error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, EOCDInfo{}, err
	}

	limit := maxSearchBytes
	if limit > size {
		limit = size
	}

	windowLen := int64(searchWindow + searchOverlap)
	pos := size
	for pos > size-limit {
		start := pos - windowLen
		if start < size-limit {
			start = size - limit
		}
		if start < 0 {
			start = 0
		}
		n := pos - start
		if n < zipfmt.EOCDLen {
			break
		}
		buf := make([]byte, n)
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return 0, EOCDInfo{}, err
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, EOCDInfo{}, err
		}

		sigBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(sigBytes, zipfmt.SigEOCD)
		if idx := bytes.LastIndex(buf, sigBytes); idx != -1 && int64(len(buf)-idx) >= zipfmt.EOCDLen {
			off := start + int64(idx)
			rec, err := parseEOCDAt(buf[idx:])
			if err != nil {
				return 0, EOCDInfo{}, err
			}
			return off, rec, nil
		}

		if start == size-limit || start == 0 {
			break
		}
		pos = start + searchOverlap
	}

	return 0, EOCDInfo{}, ErrNoEOCDFound
}

func parseEOCDAt(buf []byte) (EOCDInfo, error) {
	if len(buf) < zipfmt.EOCDLen {
		return EOCDInfo{}, ErrFormat
	}
	commentLen := binary.LittleEndian.Uint16(buf[20:22])
	if len(buf) < zipfmt.EOCDLen+int(commentLen) {
		commentLen = uint16(len(buf) - zipfmt.EOCDLen)
	}
	return EOCDInfo{
		DiskNumber:    binary.LittleEndian.Uint16(buf[4:6]),
		CDDiskOffset:  binary.LittleEndian.Uint16(buf[6:8]),
		CDCountOnDisk: binary.LittleEndian.Uint16(buf[8:10]),
		CDCount:       binary.LittleEndian.Uint16(buf[10:12]),
		CDSize:        binary.LittleEndian.Uint32(buf[12:16]),
		CDOffset:      binary.LittleEndian.Uint32(buf[16:20]),
		Comment:       string(buf[zipfmt.EOCDLen : zipfmt.EOCDLen+int(commentLen)]),
	}, nil
}

// Resolved holds the fully-resolved (ZIP64-upgraded) central-directory
// location, independent of whether the values came from the 32-bit EOCD or
// a ZIP64 EOCD.
type Resolved struct {
	DiskNumberWithCD uint32
	CDOffset         uint64
	CDSize           uint64
	NumberEntry      uint64
	CDCountOnDisk    uint64
	VersionMadeBy    uint16
	OffsetShift      int64
	Comment          string
}

// Resolve runs the ZIP64 upgrade and offset-shift repair on top of a
// FindEOCD result.
func Resolve(r io.ReadSeeker, eocdOffset int64, info EOCDInfo) (Resolved, error) {
	res := Resolved{
		DiskNumberWithCD: uint32(info.CDDiskOffset),
		CDOffset:         uint64(info.CDOffset),
		CDSize:           uint64(info.CDSize),
		NumberEntry:      uint64(info.CDCount),
		CDCountOnDisk:    uint64(info.CDCountOnDisk),
		Comment:          info.Comment,
	}

	needsZip64 := info.CDCount == zipfmt.Uint16Max || info.CDOffset == zipfmt.Uint32Max || info.CDSize == zipfmt.Uint32Max
	if needsZip64 {
		locatorOffset := eocdOffset - zipfmt.Zip64LocatorLen
		if locatorOffset < 0 {
			return Resolved{}, fmt.Errorf("%w: zip64 sentinel present but no room for locator", ErrFormat)
		}
		if _, err := r.Seek(locatorOffset, io.SeekStart); err != nil {
			return Resolved{}, err
		}
		var locBuf [zipfmt.Zip64LocatorLen]byte
		if _, err := io.ReadFull(r, locBuf[:]); err != nil {
			return Resolved{}, err
		}
		if binary.LittleEndian.Uint32(locBuf[0:4]) != zipfmt.SigZip64Locator {
			return Resolved{}, fmt.Errorf("%w: zip64 sentinel present but locator signature missing", ErrFormat)
		}
		zip64EOCDOffset := binary.LittleEndian.Uint64(locBuf[8:16])

		if _, err := r.Seek(int64(zip64EOCDOffset), io.SeekStart); err != nil {
			return Resolved{}, err
		}
		var fixedBuf [12]byte
		if _, err := io.ReadFull(r, fixedBuf[:]); err != nil {
			return Resolved{}, err
		}
		if binary.LittleEndian.Uint32(fixedBuf[0:4]) != zipfmt.SigZip64EOCD {
			return Resolved{}, fmt.Errorf("%w: zip64 EOCD signature missing", ErrFormat)
		}
		recordSize := binary.LittleEndian.Uint64(fixedBuf[4:12])
		body := make([]byte, recordSize)
		if _, err := io.ReadFull(r, body); err != nil {
			return Resolved{}, err
		}
		if len(body) < zipfmt.Zip64EOCDBodyLen {
			return Resolved{}, fmt.Errorf("%w: zip64 EOCD body too short", ErrFormat)
		}
		res.VersionMadeBy = binary.LittleEndian.Uint16(body[0:2])
		res.DiskNumberWithCD = binary.LittleEndian.Uint32(body[8:12])
		res.CDCountOnDisk = binary.LittleEndian.Uint64(body[12:20])
		res.NumberEntry = binary.LittleEndian.Uint64(body[20:28])
		res.CDSize = binary.LittleEndian.Uint64(body[28:36])
		res.CDOffset = binary.LittleEndian.Uint64(body[36:44])
	}

	shift, err := findOffsetShift(r, eocdOffset, res.CDOffset, res.CDSize)
	if err != nil {
		return Resolved{}, err
	}
	res.OffsetShift = shift

	return res, nil
}

// findOffsetShift implements offset-shift repair: verify the
// central-directory signature at the declared offset; if absent, retry at
// EOCD-cd_size and adopt the resulting shift; refuse if neither matches.
func findOffsetShift(r io.ReadSeeker, eocdOffset int64, cdOffset, cdSize uint64) (int64, error) {
	if cdSize == 0 {
		// An empty central directory has no signature of its own to
		// verify; trust the declared offset.
		return 0, nil
	}
	if hasCDSignatureAt(r, int64(cdOffset)) {
		return 0, nil
	}
	alt := eocdOffset - int64(cdSize)
	if alt >= 0 && hasCDSignatureAt(r, alt) {
		return alt - int64(cdOffset), nil
	}
	return 0, fmt.Errorf("%w: central directory signature not found at declared or shifted offset", ErrFormat)
}

func hasCDSignatureAt(r io.ReadSeeker, offset int64) bool {
	if offset < 0 {
		return false
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return false
	}
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return false
	}
	return binary.LittleEndian.Uint32(sig[:]) == zipfmt.SigCentralDirectory
}

// ConsistencyCheck validates that the EOCD lies at or after the end of the
// resolved central directory, and, for a single-disk archive
// (DiskNumberWithCD == 0), that the per-disk entry count agrees with the
// total entry count — on a single disk the two are the same quantity by
// definition, so a mismatch indicates a corrupt or tampered EOCD.
func ConsistencyCheck(eocdOffset int64, res Resolved) error {
	if eocdOffset < int64(res.CDOffset)+int64(res.CDSize)+res.OffsetShift {
		return fmt.Errorf("%w: EOCD precedes end of central directory", ErrFormat)
	}
	if res.DiskNumberWithCD == 0 && res.CDCountOnDisk != res.NumberEntry {
		return fmt.Errorf("%w: per-disk entry count %d disagrees with total entry count %d on a single-disk archive", ErrFormat, res.CDCountOnDisk, res.NumberEntry)
	}
	return nil
}
