package binio

import (
	"encoding/binary"
	"io"
)

// Reader wraps an io.Reader with little-endian fixed-width integer
// primitives. The first error encountered is sticky: subsequent calls
// become no-ops that return the zero value, a short-circuit discipline
// that keeps callers from checking errors after every field read.
type Reader struct {
	r   io.Reader
	err error
	buf [8]byte
}

// NewReader wraps r for little-endian primitive reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fill(n int) []byte {
	if r.err == nil {
		if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
			r.err = err
		}
	}
	if r.err != nil {
		r.buf = [8]byte{}
	}
	return r.buf[:n]
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() uint8 {
	b := r.fill(1)
	return b[0]
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.fill(2)
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.fill(4)
	return binary.LittleEndian.Uint32(b)
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() uint64 {
	b := r.fill(8)
	return binary.LittleEndian.Uint64(b)
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) []byte {
	if r.err != nil || n == 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = err
		return nil
	}
	return buf
}

// Writer wraps an io.Writer with little-endian fixed-width integer
// primitives and the same sticky-first-error semantics as Reader.
type Writer struct {
	w   io.Writer
	err error
	n   int64
}

// NewWriter wraps w for little-endian primitive writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error { return w.err }

// N returns the total number of bytes successfully written so far.
func (w *Writer) N() int64 { return w.n }

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	if err != nil {
		w.err = err
	}
}

// Uint8 writes a single byte.
func (w *Writer) Uint8(v uint8) { w.write([]byte{v}) }

// Uint16 writes a little-endian uint16.
func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.write(b[:])
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.write(b[:])
}

// Uint64 writes a little-endian uint64.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.write(b[:])
}

// Bytes writes raw bytes verbatim.
func (w *Writer) Bytes(b []byte) { w.write(b) }

// String writes s verbatim (no length prefix; callers write lengths
// separately per the fixed-header layout).
func (w *Writer) String(s string) { w.write([]byte(s)) }
