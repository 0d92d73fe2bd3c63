package zipcore

import (
	"fmt"
	"io"

	"github.com/arlyn/zipcore/internal/entrystream"
	"github.com/arlyn/zipcore/internal/header"
	"github.com/arlyn/zipcore/internal/zipfmt"
	"github.com/arlyn/zipcore/internal/zipmeta"
)

// countingWriter tracks how many bytes have been written through it, so
// CreateEntry can learn the local header's on-disk size without a second
// pass over the stream.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteOptions configures CreateEntry.
type WriteOptions struct {
	// Password overrides the archive-level password for this entry. A
	// non-empty password with e.Encryption left at EncryptionNone upgrades
	// the entry to EncryptionZipCrypto.
	Password []byte

	// Raw writes pre-compressed bytes straight through to the (optional)
	// cipher layer instead of running them through the codec — the
	// write-side counterpart of ReadOptions.Raw. e.Method must already
	// describe how the caller compressed the bytes, and e.CRC32/
	// e.UncompressedSize must hold their final values up front, since
	// CreateEntry never sees the plaintext to derive them itself; the
	// Store/compress-level forcing CreateEntry otherwise applies is
	// skipped for a raw entry.
	Raw bool
}

// EntryWriter accepts one entry's plaintext. Obtain one via
// Archive.CreateEntry; it must be closed before the next CreateEntry or
// archive Close call.
type EntryWriter struct {
	a          *Archive
	e          *zipfmt.Entry
	ew         *entrystream.EntryWriter
	localZip64 bool
	closed     bool
}

// Write forwards plaintext through the entry's CRC/codec/cipher stack.
func (w *EntryWriter) Write(p []byte) (int, error) {
	return w.ew.Write(p)
}

// Close flushes the codec and cipher layers, writes the trailing data
// descriptor, and appends the entry's central directory record. The
// data descriptor's field width matches whatever ZIP64 decision was made
// when the local header was written, even if the final sizes wouldn't by
// themselves require it.
func (w *EntryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.a.openWriter = nil

	result, err := w.ew.Close()
	if err != nil {
		return wrapErr("EntryWriter.Close", err)
	}
	w.e.CRC32 = result.CRC32
	w.e.UncompressedSize = result.UncompressedSize
	w.e.CompressedSize = result.CompressedSize
	w.a.writeOffset += result.CompressedSize

	descriptor := &countingWriter{w: w.a.stream}
	if err := header.WriteDataDescriptor(descriptor, w.e, w.localZip64); err != nil {
		return wrapErr("EntryWriter.Close", err)
	}
	w.a.writeOffset += uint64(descriptor.n)

	if err := w.a.cdWriter.Append(w.e); err != nil {
		return wrapErr("EntryWriter.Close", err)
	}

	return nil
}

// CreateEntry starts writing a new entry at the archive's current write
// offset. e's Name, Method and other metadata must already be set; its
// CRC32/CompressedSize/UncompressedSize are overwritten at Close once the
// real values are known. Any previously open EntryWriter is closed first,
// mirroring the single-open-entry convention.
func (a *Archive) CreateEntry(e *zipfmt.Entry, opts WriteOptions) (*EntryWriter, error) {
	if a.mode == ModeRead {
		return nil, newErr("CreateEntry", CodeParam, fmt.Errorf("archive opened for reading"))
	}
	if a.openWriter != nil {
		if err := a.openWriter.Close(); err != nil {
			return nil, err
		}
	}

	if e.VersionMadeBy == 0 {
		e.VersionMadeBy = a.versionMadeBy
	}
	if e.Zip64Policy == zipfmt.Zip64Auto {
		e.Zip64Policy = a.zip64Policy
	}

	password := opts.Password
	if password == nil {
		password = a.password
	}
	if len(password) > 0 && e.Encryption == zipfmt.EncryptionNone {
		e.Encryption = zipfmt.EncryptionZipCrypto
	}
	if e.Encryption == zipfmt.EncryptionAES && e.AESEncryptionMode == 0 {
		e.AESEncryptionMode = zipfmt.AES256
	}

	isDir := zipmeta.IsDirectory(zipmeta.HostSystemFromByte(byte(e.VersionMadeBy>>8)), e.ExternalAttrs, e.Name)
	if !opts.Raw {
		if isDir || a.compressLevel == 0 {
			e.Method = zipfmt.Store
		}
		if e.Method == zipfmt.Deflate {
			e.Flags = e.Flags&^(zipfmt.FlagDeflateOptionBit1|zipfmt.FlagDeflateOptionBit2) | deflateOptionFlags(a.compressLevel)
		}
	}

	if _, err := a.stream.Seek(int64(a.writeOffset), io.SeekStart); err != nil {
		return nil, wrapErr("CreateEntry", err)
	}

	e.DiskOffset = a.writeOffset
	e.DiskNumber = a.diskNumberWithCD
	// WriteLocal always emits a trailing data descriptor for streamed
	// writes; set the flag here too so the cipher layer's ZipCrypto
	// verifier byte selection (DOS time vs CRC high byte) agrees with it.
	e.Flags |= zipfmt.FlagDataDescriptor
	if e.Encryption != zipfmt.EncryptionNone {
		e.Flags |= zipfmt.FlagEncrypted
	}

	cw := &countingWriter{w: a.stream}
	if err := header.WriteLocal(cw, e, false); err != nil {
		return nil, wrapErr("CreateEntry", err)
	}
	a.writeOffset += uint64(cw.n)

	localZip64 := header.NeedsZip64(e, true, false)

	level := a.compressLevel
	dosTimeHigh, crcHigh := dosCheckBytes(e)

	ew, err := entrystream.Open(a.stream, e, entrystream.Options{
		Method:              e.Method,
		CompressLevel:       level,
		Password:            password,
		DOSTimeHigh:         dosTimeHigh,
		CRCHigh:             crcHigh,
		Raw:                 opts.Raw,
		RawCRC32:            e.CRC32,
		RawUncompressedSize: e.UncompressedSize,
	})
	if err != nil {
		return nil, wrapErr("CreateEntry", err)
	}

	w := &EntryWriter{a: a, e: e, ew: ew, localZip64: localZip64}
	a.openWriter = w
	return w, nil
}

// deflateOptionFlags translates a flate compression level into the
// general-purpose bit 1/2 pair the PKWARE APPNOTE assigns to deflate's
// Normal/Maximum/Fast/Super Fast sub-methods.
func deflateOptionFlags(level int) uint16 {
	switch {
	case level == 9:
		return zipfmt.DeflateMax
	case level == 1:
		return zipfmt.DeflateSuper
	case level >= 2 && level <= 5:
		return zipfmt.DeflateFast
	default:
		return zipfmt.DeflateNormal
	}
}

// dosCheckBytes returns the two ZipCrypto check-byte candidates for e: the
// DOS time high byte and the CRC high byte. Newly written entries use the
// DOS time byte, since CreateEntry sets FlagDataDescriptor on e.
func dosCheckBytes(e *zipfmt.Entry) (dosTimeHigh, crcHigh byte) {
	_, clock := zipmeta.EncodeDOSTime(e.Modified)
	return byte(clock >> 8), byte(e.CRC32 >> 24)
}
