// Package entrystream builds the three-layer per-entry pipeline: a
// CRC32 observer wrapping a compression codec wrapping an optional cipher,
// composed around a borrowed base stream. The write side follows the
// CRC-then-data-descriptor flow used for streamed entries; the read side
// is a symmetric addition.
package entrystream

import (
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/ulikunitz/xz/lzma"

	"github.com/arlyn/zipcore/internal/zipfmt"
)

// ErrUnsupportedMethod is returned for a compression_method this codec
// layer does not implement.
var ErrUnsupportedMethod = errors.New("entrystream: unsupported compression method")

// countingWriter tracks how many bytes have passed through Write, giving
// TOTAL_OUT for the compression layer on the write path.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// countingReader tracks how many bytes have been read, giving TOTAL_IN for
// the compression layer on the read path, and enforces TOTAL_IN_MAX.
type countingReader struct {
	r       io.Reader
	n       int64
	max     int64 // enforced only when hasMax is set
	hasMax  bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	if c.hasMax {
		remaining := c.max - c.n
		if remaining <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// newCompressor wraps dst with the codec for method, returning an
// io.WriteCloser whose Close flushes any internal buffering and a function
// to retrieve TOTAL_OUT (compressed byte count) after Close.
func newCompressor(method uint16, level int, dst io.Writer) (io.WriteCloser, func() int64, error) {
	cw := &countingWriter{w: dst}
	switch method {
	case zipfmt.Store:
		return nopWriteCloser{cw}, func() int64 { return cw.n }, nil
	case zipfmt.Deflate:
		lvl := level
		if lvl == 0 {
			lvl = flate.DefaultCompression
		}
		fw, err := flate.NewWriter(cw, lvl)
		if err != nil {
			return nil, nil, fmt.Errorf("entrystream: deflate writer: %w", err)
		}
		return fw, func() int64 { return cw.n }, nil
	case zipfmt.BZip2:
		bw, err := bzip2.NewWriterLevel(cw, bzip2Level(level))
		if err != nil {
			return nil, nil, fmt.Errorf("entrystream: bzip2 writer: %w", err)
		}
		return bw, func() int64 { return cw.n }, nil
	case zipfmt.LZMA:
		lw, err := lzma.NewWriter2(cw)
		if err != nil {
			return nil, nil, fmt.Errorf("entrystream: lzma writer: %w", err)
		}
		return lw, func() int64 { return cw.n }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, method)
	}
}

// newDecompressor wraps src with the codec for method, bounding consumption
// by totalInMax (a negative value means unbounded).
func newDecompressor(method uint16, src io.Reader, totalInMax int64) (io.ReadCloser, error) {
	cr := &countingReader{r: src, max: totalInMax, hasMax: totalInMax >= 0}
	switch method {
	case zipfmt.Store:
		return io.NopCloser(cr), nil
	case zipfmt.Deflate:
		return flate.NewReader(cr), nil
	case zipfmt.BZip2:
		br, err := bzip2.NewReader(cr, nil)
		if err != nil {
			return nil, fmt.Errorf("entrystream: bzip2 reader: %w", err)
		}
		return br, nil
	case zipfmt.LZMA:
		lr, err := lzma.NewReader2(cr)
		if err != nil {
			return nil, fmt.Errorf("entrystream: lzma reader: %w", err)
		}
		return io.NopCloser(lr), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, method)
	}
}

func bzip2Level(level int) int {
	if level <= 0 {
		return bzip2.DefaultCompression
	}
	return level
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
