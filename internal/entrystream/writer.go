package entrystream

import (
	"io"

	"github.com/arlyn/zipcore/internal/zipfmt"
)

// EntryWriter is the write-path three-layer stack: callers write plaintext,
// which is observed by a CRC32 layer, compressed by a codec, optionally
// encrypted, and appended to the base stream. In Raw mode the codec layer
// is skipped entirely: callers write bytes already compressed by Method,
// and supply the final CRC32/uncompressed size themselves since this
// layer never sees the plaintext.
type EntryWriter struct {
	crc       *crcObserver
	codec     io.WriteCloser
	cipher    cipherWriter
	codecOut  func() int64
	encrypted bool
	raw       bool
	rawCRC32  uint32
	rawSize   uint64
}

// Options configures an EntryWriter's codec and cipher layers.
type Options struct {
	Method         uint16
	CompressLevel  int
	Password       []byte
	DOSTimeHigh byte
	CRCHigh        byte // only meaningful when the caller already knows the plaintext CRC ahead of time; usually 0

	// Raw, when true, writes pre-compressed bytes straight to the cipher
	// layer without running them through a codec — minizip's
	// mz_zip_entry_write_open(..., raw, ...) mode. RawCRC32/
	// RawUncompressedSize supply the values Close reports, since they
	// can't be derived from bytes this layer never decompresses.
	Raw                 bool
	RawCRC32            uint32
	RawUncompressedSize uint64
}

// Open builds an EntryWriter over base for entry e
// three-layer composition (CRC32 observer outermost, codec, cipher
// innermost), or the cipher-only two-layer stack when opts.Raw is set.
func Open(base io.Writer, e *zipfmt.Entry, opts Options) (*EntryWriter, error) {
	cw, err := newCipherWriter(base, e, opts.Password, opts.DOSTimeHigh, opts.CRCHigh)
	if err != nil {
		return nil, err
	}
	encrypted := e.Encryption != zipfmt.EncryptionNone

	if opts.Raw {
		return &EntryWriter{
			crc:       newCRCObserverWriter(cw),
			cipher:    cw,
			encrypted: encrypted,
			raw:       true,
			rawCRC32:  opts.RawCRC32,
			rawSize:   opts.RawUncompressedSize,
		}, nil
	}

	codec, codecOut, err := newCompressor(opts.Method, opts.CompressLevel, cw)
	if err != nil {
		return nil, err
	}
	return &EntryWriter{
		crc:       newCRCObserverWriter(codec),
		codec:     codec,
		cipher:    cw,
		codecOut:  codecOut,
		encrypted: encrypted,
	}, nil
}

// Write forwards plaintext through the CRC32 observer into the codec, or,
// in Raw mode, forwards already-compressed bytes straight to the cipher
// layer while still counting them for CompressedSize.
func (ew *EntryWriter) Write(p []byte) (int, error) {
	return ew.crc.Write(p)
}

// Result is the final accounting an EntryWriter.Close reports, used to
// populate the data descriptor and central-directory record.
type Result struct {
	CRC32            uint32
	UncompressedSize uint64
	CompressedSize   uint64
}

// Close flushes the codec and cipher layers in order and returns the final
// CRC/size accounting close(write) rule: the cipher's
// TOTAL_OUT (when present) overwrites the codec's TOTAL_OUT as the final
// compressed size, since AES trailers are part of the on-disk payload. In
// Raw mode there is no codec to flush and the reported CRC32/uncompressed
// size are whatever the caller supplied at Open.
func (ew *EntryWriter) Close() (Result, error) {
	if ew.raw {
		compressed := ew.crc.total
		if err := ew.cipher.Close(); err != nil {
			return Result{}, err
		}
		if ew.encrypted {
			compressed = ew.cipher.TotalOut()
		}
		return Result{
			CRC32:            ew.rawCRC32,
			UncompressedSize: ew.rawSize,
			CompressedSize:   uint64(compressed),
		}, nil
	}

	if err := ew.codec.Close(); err != nil {
		return Result{}, err
	}
	compressed := ew.codecOut()
	if err := ew.cipher.Close(); err != nil {
		return Result{}, err
	}
	if ew.encrypted {
		compressed = ew.cipher.TotalOut()
	}
	return Result{
		CRC32:            ew.crc.crc,
		UncompressedSize: uint64(ew.crc.total),
		CompressedSize:   uint64(compressed),
	}, nil
}
