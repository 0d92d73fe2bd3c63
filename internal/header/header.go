// Package header implements the bidirectional codec for ZIP local and
// central directory file header records, generalizing
// martin-sucha-zipserve's writer.go (write-only) with a read side grounded
// on nguyengg-xy3/zip/scan/zip.go's unmarshalCDFileHeader and
// raff-zipsaver's local-header parse loop.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arlyn/zipcore/internal/binio"
	"github.com/arlyn/zipcore/internal/extra"
	"github.com/arlyn/zipcore/internal/zipfmt"
	"github.com/arlyn/zipcore/internal/zipmeta"
)

// ErrEndOfList is returned by ReadCentral when the signature read is
// actually an EOCD/ZIP64-EOCD signature, signaling the end of the central
// directory.
var ErrEndOfList = errors.New("header: end of list")

var errBadSignature = errors.New("header: bad record signature")

var (
	errLongName    = errors.New("header: entry name too long")
	errLongExtra   = errors.New("header: extra field too long")
	errLongComment = errors.New("header: comment too long")
)

// ErrInvalidDate is returned when a header's on-wire DOS date/time fields
// don't decode to a valid calendar time.
var ErrInvalidDate = errors.New("header: invalid DOS date/time")

// ZIP64 necessity / version_needed policy (write path).

func decideZip64(e *zipfmt.Entry, local bool, sizesKnown bool) bool {
	switch e.Zip64Policy {
	case zipfmt.Zip64Force:
		return true
	case zipfmt.Zip64Disable:
		return false
	default: // Zip64Auto
		if e.IsZip64Necessary() {
			return true
		}
		if local && !sizesKnown {
			return true
		}
		return false
	}
}

// NeedsZip64 reports whether e requires ZIP64 representation in the given
// context, honoring e.Zip64Policy and, for local headers with sizesKnown
// false, always reserving ZIP64 space for the eventual data descriptor.
func NeedsZip64(e *zipfmt.Entry, local bool, sizesKnown bool) bool {
	return decideZip64(e, local, sizesKnown)
}

func versionNeeded(e *zipfmt.Entry, zip64 bool) uint16 {
	v := zipfmt.Version20
	if zip64 {
		v = zipfmt.Version45
	}
	if e.Encryption == zipfmt.EncryptionAES && v < zipfmt.Version51 {
		v = zipfmt.Version51
	}
	if e.Method == zipfmt.LZMA && v < zipfmt.Version63 {
		v = zipfmt.Version63
	}
	return v
}

func checkLengths(name string, ex []byte, comment string) error {
	if len(name) > zipfmt.Uint16Max {
		return errLongName
	}
	if len(ex) > zipfmt.Uint16Max {
		return errLongExtra
	}
	if len(comment) > zipfmt.Uint16Max {
		return errLongComment
	}
	return nil
}

// canonicalName appends a trailing slash to directory entries that lack
// one and the directory-canonicalization property.
func canonicalName(name string, isDir bool) string {
	if isDir && !strings.HasSuffix(name, "/") && !strings.HasSuffix(name, "\\") {
		return name + "/"
	}
	return name
}

func effectiveMethod(e *zipfmt.Entry) uint16 {
	if e.Encryption == zipfmt.EncryptionAES {
		return zipfmt.AESMethod
	}
	return e.Method
}

func pickTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

// buildExtra assembles the owned+pass-through extra blob for e, per
// writer policy: ZIP64 first, then NTFS, then AES, then UNIX1 (when UID or
// GID is nonzero), then pass-through blocks from e.Extra with owned ids filtered out.
func buildExtra(e *zipfmt.Entry, zip64 bool, local bool, uncompressed, compressed, diskOffset uint64) ([]byte, error) {
	var b extra.Builder

	ownedIDs := []uint16{extra.IDZip64, extra.IDNTFS}
	if e.UID != 0 || e.GID != 0 {
		ownedIDs = append(ownedIDs, extra.IDUnix1)
	}
	if zip64 {
		var fields extra.Zip64Fields
		u, c := uncompressed, compressed
		fields.UncompressedSize = &u
		fields.CompressedSize = &c
		if !local {
			off := diskOffset
			fields.DiskOffset = &off
		}
		b.PutOwned(extra.IDZip64, extra.BuildZip64(fields))
	}

	if !e.Modified.IsZero() {
		b.PutOwned(extra.IDNTFS, extra.BuildNTFS(extra.NTFSTimes{
			Modified: zipmeta.TimeToNTFSTicks(e.Modified),
			Accessed: zipmeta.TimeToNTFSTicks(pickTime(e.Accessed, e.Modified)),
			Created:  zipmeta.TimeToNTFSTicks(pickTime(e.Created, e.Modified)),
		}))
	}

	if e.Encryption == zipfmt.EncryptionAES {
		ownedIDs = append(ownedIDs, extra.IDAES)
		strength, err := extra.AESStrengthForBits(int(e.AESEncryptionMode))
		if err != nil {
			return nil, err
		}
		version := e.AESVersion
		if version != 1 && version != 2 {
			version = 2
		}
		b.PutOwned(extra.IDAES, extra.BuildAES(extra.AESFields{
			Version:               uint16(version),
			Strength:              strength,
			RealCompressionMethod: e.Method,
		}))
	}

	if e.UID != 0 || e.GID != 0 {
		b.PutOwned(extra.IDUnix1, extra.BuildUnix1(extra.Unix1Times{
			AccessTime: zipmeta.TimeToUnixSeconds(pickTime(e.Accessed, e.Modified)),
			ModifyTime: zipmeta.TimeToUnixSeconds(e.Modified),
			UID:        e.UID,
			GID:        e.GID,
		}))
	}

	existing, err := extra.Parse(e.Extra)
	if err != nil {
		return nil, fmt.Errorf("header: parsing incoming extra: %w", err)
	}
	b.PassThrough(existing, ownedIDs...)

	return b.Bytes(), nil
}

// WriteLocal writes e's local file header (and trailing name/extra) to w.
// sizesKnown indicates whether e.UncompressedSize/CompressedSize already
// hold final values. When false (the streaming-write case), AUTO policy
// always reserves ZIP64 extra space, the DATA_DESCRIPTOR flag is set, and
// the fixed crc/size fields are written as zero since a trailing data
// descriptor will carry the real values, matching
// martin-sucha-zipserve's writeHeader convention. When true (entries
// assembled from already-known content, e.g. a static archive), the real
// crc/size fields are written directly (the sizes as 0xFFFFFFFF sentinels
// when a ZIP64 extra carries them) and no data descriptor follows.
func WriteLocal(w io.Writer, e *zipfmt.Entry, sizesKnown bool) error {
	isDir := zipmeta.IsDirectory(zipmeta.HostSystemFromByte(byte(e.VersionMadeBy>>8)), e.ExternalAttrs, e.Name)
	name := canonicalName(e.Name, isDir)

	zip64 := decideZip64(e, true, sizesKnown)
	flags := e.Flags
	method := effectiveMethod(e)

	var crc32, compressed, uncompressed uint32
	if sizesKnown {
		crc32 = e.CRC32
		compressed = uint32(e.CompressedSize)
		uncompressed = uint32(e.UncompressedSize)
		if zip64 {
			compressed, uncompressed = zipfmt.Uint32Max, zipfmt.Uint32Max
		}
	} else {
		flags |= zipfmt.FlagDataDescriptor
	}

	extraBlob, err := buildExtra(e, zip64, true, e.UncompressedSize, e.CompressedSize, 0)
	if err != nil {
		return err
	}
	if err := checkLengths(name, extraBlob, ""); err != nil {
		return err
	}

	date, clock := zipmeta.EncodeDOSTime(e.Modified)

	bw := binio.NewWriter(w)
	bw.Uint32(zipfmt.SigLocalFileHeader)
	bw.Uint16(versionNeeded(e, zip64))
	bw.Uint16(flags)
	bw.Uint16(method)
	bw.Uint16(clock)
	bw.Uint16(date)
	bw.Uint32(crc32)
	bw.Uint32(compressed)
	bw.Uint32(uncompressed)
	bw.Uint16(uint16(len(name)))
	bw.Uint16(uint16(len(extraBlob)))
	bw.String(name)
	bw.Bytes(extraBlob)
	return bw.Err()
}

// WriteCentral writes e's central directory header (fixed record plus
// name/extra/comment) to w.
func WriteCentral(w io.Writer, e *zipfmt.Entry) error {
	isDir := zipmeta.IsDirectory(zipmeta.HostSystemFromByte(byte(e.VersionMadeBy>>8)), e.ExternalAttrs, e.Name)
	name := canonicalName(e.Name, isDir)

	zip64 := decideZip64(e, false, true)
	method := effectiveMethod(e)

	extraBlob, err := buildExtra(e, zip64, false, e.UncompressedSize, e.CompressedSize, e.DiskOffset)
	if err != nil {
		return err
	}
	if err := checkLengths(name, extraBlob, e.Comment); err != nil {
		return err
	}

	uncompressed32, compressed32, offset32 := e.UncompressedSize, e.CompressedSize, e.DiskOffset
	diskNumber16 := e.DiskNumber
	if zip64 {
		uncompressed32 = zipfmt.Uint32Max
		compressed32 = zipfmt.Uint32Max
		offset32 = zipfmt.Uint32Max
	}

	date, clock := zipmeta.EncodeDOSTime(e.Modified)

	bw := binio.NewWriter(w)
	bw.Uint32(zipfmt.SigCentralDirectory)
	bw.Uint16(e.VersionMadeBy)
	bw.Uint16(versionNeeded(e, zip64))
	bw.Uint16(e.Flags)
	bw.Uint16(method)
	bw.Uint16(clock)
	bw.Uint16(date)
	bw.Uint32(e.CRC32)
	bw.Uint32(uint32(compressed32))
	bw.Uint32(uint32(uncompressed32))
	bw.Uint16(uint16(len(name)))
	bw.Uint16(uint16(len(extraBlob)))
	bw.Uint16(uint16(len(e.Comment)))
	bw.Uint16(uint16(diskNumber16))
	bw.Uint16(e.InternalAttrs)
	bw.Uint32(e.ExternalAttrs)
	bw.Uint32(uint32(offset32))
	bw.String(name)
	bw.Bytes(extraBlob)
	bw.String(e.Comment)
	return bw.Err()
}

// WriteDataDescriptor writes the 12- or 20-byte (plus 4-byte signature)
// trailer that follows entry payload when the local header was written
// with unknown sizes: signature, crc32, compressed size, uncompressed
// size. zip64 selects 8-byte size fields instead of 4-byte.
func WriteDataDescriptor(w io.Writer, e *zipfmt.Entry, zip64 bool) error {
	bw := binio.NewWriter(w)
	bw.Uint32(zipfmt.SigDataDescriptor)
	bw.Uint32(e.CRC32)
	if zip64 {
		bw.Uint64(e.CompressedSize)
		bw.Uint64(e.UncompressedSize)
	} else {
		bw.Uint32(uint32(e.CompressedSize))
		bw.Uint32(uint32(e.UncompressedSize))
	}
	return bw.Err()
}

// ReadDataDescriptor reads a data descriptor trailer from r, populating
// e.CRC32/CompressedSize/UncompressedSize. zip64 selects 8-byte size
// fields. The optional leading signature word is consumed and verified
// when present; some writers omit it, so a non-matching first word is
// instead treated as the CRC32 field.
func ReadDataDescriptor(r io.Reader, e *zipfmt.Entry, zip64 bool) error {
	br := binio.NewReader(r)
	first := br.Uint32()
	crc := first
	if first == zipfmt.SigDataDescriptor {
		crc = br.Uint32()
	}
	var compressed, uncompressed uint64
	if zip64 {
		compressed = br.Uint64()
		uncompressed = br.Uint64()
	} else {
		compressed = uint64(br.Uint32())
		uncompressed = uint64(br.Uint32())
	}
	if err := br.Err(); err != nil {
		return err
	}
	e.CRC32 = crc
	e.CompressedSize = compressed
	e.UncompressedSize = uncompressed
	return nil
}

// ReadLocal parses a local file header starting at the current position of
// r, including its trailing name and extra fields.
func ReadLocal(r io.Reader) (*zipfmt.Entry, error) {
	var fixed [zipfmt.LocalHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, err
	}
	sig := binary.LittleEndian.Uint32(fixed[0:4])
	if sig != zipfmt.SigLocalFileHeader {
		return nil, errBadSignature
	}

	e := &zipfmt.Entry{}
	e.VersionNeeded = binary.LittleEndian.Uint16(fixed[4:6])
	e.Flags = binary.LittleEndian.Uint16(fixed[6:8])
	method := binary.LittleEndian.Uint16(fixed[8:10])
	clock := binary.LittleEndian.Uint16(fixed[10:12])
	date := binary.LittleEndian.Uint16(fixed[12:14])
	e.CRC32 = binary.LittleEndian.Uint32(fixed[14:18])
	e.CompressedSize = uint64(binary.LittleEndian.Uint32(fixed[18:22]))
	e.UncompressedSize = uint64(binary.LittleEndian.Uint32(fixed[22:26]))
	nameLen := binary.LittleEndian.Uint16(fixed[26:28])
	extraLen := binary.LittleEndian.Uint16(fixed[28:30])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}
	extraBlob := make([]byte, extraLen)
	if _, err := io.ReadFull(r, extraBlob); err != nil {
		return nil, err
	}

	t, ok := zipmeta.DecodeDOSTime(date, clock)
	if !ok {
		return nil, fmt.Errorf("%w: local header date %#x time %#x", ErrInvalidDate, date, clock)
	}
	e.Modified = t
	e.Name = decodeName(name, e.Flags)
	e.Extra = extraBlob

	if err := applyExtra(e, extraBlob, true); err != nil {
		return nil, err
	}

	e.Method = resolveMethod(e, method)
	return e, nil
}

// ReadCentral parses one central directory header starting at the current
// position of r. If the four-byte signature instead matches the EOCD or
// ZIP64 EOCD signature, it returns ErrEndOfList without consuming more than
// those four bytes' worth of meaning (the caller owns repositioning).
func ReadCentral(r io.Reader) (*zipfmt.Entry, error) {
	var fixed [zipfmt.CentralHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, err
	}
	sig := binary.LittleEndian.Uint32(fixed[0:4])
	if sig == zipfmt.SigEOCD || sig == zipfmt.SigZip64EOCD {
		return nil, ErrEndOfList
	}
	if sig != zipfmt.SigCentralDirectory {
		return nil, errBadSignature
	}

	e := &zipfmt.Entry{}
	e.VersionMadeBy = binary.LittleEndian.Uint16(fixed[4:6])
	e.VersionNeeded = binary.LittleEndian.Uint16(fixed[6:8])
	e.Flags = binary.LittleEndian.Uint16(fixed[8:10])
	method := binary.LittleEndian.Uint16(fixed[10:12])
	clock := binary.LittleEndian.Uint16(fixed[12:14])
	date := binary.LittleEndian.Uint16(fixed[14:16])
	e.CRC32 = binary.LittleEndian.Uint32(fixed[16:20])
	e.CompressedSize = uint64(binary.LittleEndian.Uint32(fixed[20:24]))
	e.UncompressedSize = uint64(binary.LittleEndian.Uint32(fixed[24:28]))
	nameLen := binary.LittleEndian.Uint16(fixed[28:30])
	extraLen := binary.LittleEndian.Uint16(fixed[30:32])
	commentLen := binary.LittleEndian.Uint16(fixed[32:34])
	e.DiskNumber = uint32(binary.LittleEndian.Uint16(fixed[34:36]))
	e.InternalAttrs = binary.LittleEndian.Uint16(fixed[36:38])
	e.ExternalAttrs = binary.LittleEndian.Uint32(fixed[38:42])
	e.DiskOffset = uint64(binary.LittleEndian.Uint32(fixed[42:46]))

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}
	extraBlob := make([]byte, extraLen)
	if _, err := io.ReadFull(r, extraBlob); err != nil {
		return nil, err
	}
	comment := make([]byte, commentLen)
	if _, err := io.ReadFull(r, comment); err != nil {
		return nil, err
	}

	t, ok := zipmeta.DecodeDOSTime(date, clock)
	if !ok {
		return nil, fmt.Errorf("%w: central header date %#x time %#x", ErrInvalidDate, date, clock)
	}
	e.Modified = t
	e.Name = decodeName(name, e.Flags)
	e.Comment = decodeName(comment, e.Flags)
	e.Extra = extraBlob

	if err := applyExtra(e, extraBlob, false); err != nil {
		return nil, err
	}

	e.Method = resolveMethod(e, method)
	return e, nil
}

func decodeName(b []byte, flags uint16) string {
	// Both UTF-8 (flag bit 11) and legacy CP437/local-charset names are
	// carried through as raw bytes reinterpreted as UTF-8; generalized
	// charset transcoding is out of scope, matching martin-sucha-zipserve's
	// own plain string(b) treatment of names.
	_ = flags
	return string(b)
}

func resolveMethod(e *zipfmt.Entry, onWireMethod uint16) uint16 {
	if e.Encryption == zipfmt.EncryptionAES {
		return e.Method // populated from the AES extra by applyExtra
	}
	return onWireMethod
}

// applyExtra parses known extra sub-records (ZIP64, NTFS, AES) out of
// extraBlob and folds their values into e, overriding the 32-bit sentinel
// fields with their 64-bit counterparts.
func applyExtra(e *zipfmt.Entry, extraBlob []byte, local bool) error {
	blocks, err := extra.Parse(extraBlob)
	if err != nil {
		return fmt.Errorf("header: parsing extra: %w", err)
	}

	if data, ok := extra.Find(blocks, extra.IDZip64); ok {
		needU := extra.IsSentinel32(uint32(e.UncompressedSize))
		needC := extra.IsSentinel32(uint32(e.CompressedSize))
		needOff := !local && extra.IsSentinel32(uint32(e.DiskOffset))
		needDisk := !local && e.DiskNumber == zipfmt.Uint16Max
		fields, err := extra.ParseZip64(data, needU, needC, needOff, needDisk)
		if err != nil {
			return fmt.Errorf("header: parsing zip64 extra: %w", err)
		}
		if fields.UncompressedSize != nil {
			e.UncompressedSize = *fields.UncompressedSize
		}
		if fields.CompressedSize != nil {
			e.CompressedSize = *fields.CompressedSize
		}
		if fields.DiskOffset != nil {
			e.DiskOffset = *fields.DiskOffset
		}
		if fields.DiskNumber != nil {
			e.DiskNumber = *fields.DiskNumber
		}
	}

	if data, ok := extra.Find(blocks, extra.IDNTFS); ok {
		if times, ok, err := extra.ParseNTFS(data); err == nil && ok {
			e.Modified = zipmeta.NTFSTicksToTime(times.Modified)
			e.Accessed = zipmeta.NTFSTicksToTime(times.Accessed)
			e.Created = zipmeta.NTFSTicksToTime(times.Created)
		}
	}

	if data, ok := extra.Find(blocks, extra.IDAES); ok {
		fields, err := extra.ParseAES(data)
		if err != nil {
			return fmt.Errorf("header: parsing AES extra: %w", err)
		}
		e.Encryption = zipfmt.EncryptionAES
		e.AESVersion = int(fields.Version)
		bits, err := extra.AESBitsForStrength(fields.Strength)
		if err != nil {
			return fmt.Errorf("header: %w", err)
		}
		e.AESEncryptionMode = zipfmt.AESMode(bits)
		e.Method = fields.RealCompressionMethod
	} else if e.Flags&zipfmt.FlagEncrypted != 0 {
		e.Encryption = zipfmt.EncryptionZipCrypto
	}

	if data, ok := extra.Find(blocks, extra.IDUnix1); ok {
		times, err := extra.ParseUnix1(data)
		if err != nil {
			return fmt.Errorf("header: parsing UNIX1 extra: %w", err)
		}
		e.UID = times.UID
		e.GID = times.GID
		if e.Modified.IsZero() {
			e.Modified = zipmeta.UnixSecondsToTime(times.ModifyTime)
		}
		if e.Accessed.IsZero() {
			e.Accessed = zipmeta.UnixSecondsToTime(times.AccessTime)
		}
	}

	return nil
}
