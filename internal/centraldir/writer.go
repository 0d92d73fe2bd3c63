package centraldir

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/arlyn/zipcore/internal/header"
	"github.com/arlyn/zipcore/internal/zipfmt"
)

// Writer accumulates central-directory records in memory as entries are
// closed, then flushes the CD and the appropriate EOCD record(s) at archive
// close. Grounded on writer.go's writeCentralDirectory, generalized from a
// single eager pass into an incremental accumulator so entries can be
// appended one at a time as the façade closes them.
type Writer struct {
	buf   *bytebufferpool.ByteBuffer
	count uint64
}

// NewWriter returns a Writer with an empty central directory, optionally
// pre-seeded from a prior archive's CD bytes and entry count (the APPEND
// mode case, where the existing CD is read back in before new entries are
// appended to it).
func NewWriter(seed []byte, seedCount uint64) *Writer {
	w := &Writer{buf: bytebufferpool.Get(), count: seedCount}
	if len(seed) > 0 {
		w.buf.Write(seed)
	}
	return w
}

// Release returns the Writer's scratch buffer to the pool. Call after the
// archive has been fully flushed.
func (w *Writer) Release() {
	bytebufferpool.Put(w.buf)
	w.buf = nil
}

// Append writes e's central directory record into the in-memory buffer.
func (w *Writer) Append(e *zipfmt.Entry) error {
	if err := header.WriteCentral(w.buf, e); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of entries appended so far.
func (w *Writer) Count() uint64 { return w.count }

// Size returns the current size in bytes of the buffered central directory.
func (w *Writer) Size() int64 { return int64(w.buf.Len()) }

// Flush writes the buffered central directory followed by the ZIP64 EOCD +
// locator (when needed) and the 32-bit EOCD to dst, which must be
// positioned at the CD's start offset. cdOffset is that starting offset
// (needed for the EOCD's cd_offset field). The CD bytes are copied to dst
// *before* the ZIP64 records are emitted, even though the ZIP64 EOCD
// reports the CD's start offset.
func (w *Writer) Flush(dst io.Writer, cdOffset uint64, diskNumberWithCD uint32, versionMadeBy uint16, comment string, zip64Policy zipfmt.Zip64Policy) error {
	if len(comment) > zipfmt.Uint16Max {
		return fmt.Errorf("centraldir: comment too long")
	}

	cdSize := uint64(w.buf.Len())
	needZip64 := zip64Policy == zipfmt.Zip64Force ||
		(zip64Policy != zipfmt.Zip64Disable && (w.count > zipfmt.Uint16Max || cdOffset+cdSize >= zipfmt.Uint32Max || cdOffset >= zipfmt.Uint32Max))

	if _, err := dst.Write(w.buf.B); err != nil {
		return fmt.Errorf("centraldir: writing central directory: %w", err)
	}

	if needZip64 {
		zip64EOCDOffset := cdOffset + cdSize
		if err := writeZip64EOCD(dst, versionMadeBy, diskNumberWithCD, w.count, cdSize, cdOffset); err != nil {
			return err
		}
		if err := writeZip64Locator(dst, diskNumberWithCD, zip64EOCDOffset); err != nil {
			return err
		}
	}

	return writeEOCD(dst, diskNumberWithCD, w.count, cdSize, cdOffset, comment, needZip64)
}

func writeZip64EOCD(dst io.Writer, versionMadeBy uint16, diskNumber uint32, count, cdSize, cdOffset uint64) error {
	body := make([]byte, zipfmt.Zip64EOCDBodyLen)
	binary.LittleEndian.PutUint16(body[0:2], versionMadeBy)
	binary.LittleEndian.PutUint16(body[2:4], versionNeededForZip64())
	binary.LittleEndian.PutUint32(body[4:8], diskNumber)
	binary.LittleEndian.PutUint32(body[8:12], diskNumber)
	binary.LittleEndian.PutUint64(body[12:20], count)
	binary.LittleEndian.PutUint64(body[20:28], count)
	binary.LittleEndian.PutUint64(body[28:36], cdSize)
	binary.LittleEndian.PutUint64(body[36:44], cdOffset)

	hdr := make([]byte, 12)
	binary.LittleEndian.PutUint32(hdr[0:4], zipfmt.SigZip64EOCD)
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(len(body)))

	if _, err := dst.Write(hdr); err != nil {
		return err
	}
	_, err := dst.Write(body)
	return err
}

func writeZip64Locator(dst io.Writer, diskNumber uint32, zip64EOCDOffset uint64) error {
	b := make([]byte, zipfmt.Zip64LocatorLen)
	binary.LittleEndian.PutUint32(b[0:4], zipfmt.SigZip64Locator)
	binary.LittleEndian.PutUint32(b[4:8], diskNumber)
	binary.LittleEndian.PutUint64(b[8:16], zip64EOCDOffset)
	binary.LittleEndian.PutUint32(b[16:20], 1)
	_, err := dst.Write(b)
	return err
}

func writeEOCD(dst io.Writer, diskNumber uint32, count, cdSize, cdOffset uint64, comment string, zip64 bool) error {
	b := make([]byte, zipfmt.EOCDLen)
	binary.LittleEndian.PutUint32(b[0:4], zipfmt.SigEOCD)

	disk16 := uint16(diskNumber)
	count16 := uint16(count)
	cdSize32 := uint32(cdSize)
	cdOffset32 := uint32(cdOffset)
	if zip64 {
		// Once a ZIP64 EOCD is emitted, all three count/size/offset fields
		// are sentinel'd in the 32-bit EOCD, not only the ones that
		// actually overflow.
		count16 = zipfmt.Uint16Max
		cdSize32 = zipfmt.Uint32Max
		cdOffset32 = zipfmt.Uint32Max
	}

	binary.LittleEndian.PutUint16(b[4:6], disk16)
	binary.LittleEndian.PutUint16(b[6:8], disk16)
	binary.LittleEndian.PutUint16(b[8:10], count16)
	binary.LittleEndian.PutUint16(b[10:12], count16)
	binary.LittleEndian.PutUint32(b[12:16], cdSize32)
	binary.LittleEndian.PutUint32(b[16:20], cdOffset32)
	binary.LittleEndian.PutUint16(b[20:22], uint16(len(comment)))

	if _, err := dst.Write(b); err != nil {
		return err
	}
	_, err := io.WriteString(dst, comment)
	return err
}

func versionNeededForZip64() uint16 { return zipfmt.Version45 }
