package entrystream

import (
	"errors"
	"io"

	"github.com/arlyn/zipcore/internal/zipfmt"
)

// ErrCRCMismatch is returned by EntryReader.Close when the observed CRC32
// of the decompressed plaintext doesn't match the entry's stored CRC.
var ErrCRCMismatch = errors.New("entrystream: CRC32 mismatch")

// EntryReader is the read-path three-layer stack: the base stream is
// decrypted, decompressed, and observed for CRC32, in that order, mirroring
// EntryWriter's layer composition in reverse.
type EntryReader struct {
	crc         *crcObserverReader
	codec       io.ReadCloser
	authenticate func([]byte) error
	footer      []byte
	raw         bool
	method      uint16
	wantCRC     uint32
	aesVersion  int
	encrypted   bool
}

// ReadOptions configures an EntryReader.
type ReadOptions struct {
	Password       []byte
	DOSTimeHigh byte
	CRCHigh        byte
	CompressedSize int64
	Raw            bool // when true, bypass the codec and hand back compressed bytes unmodified (minizip's raw-copy mode)
}

// Open builds an EntryReader over base for entry e, budgeting the codec's
// TOTAL_IN_MAX: max_total_in = compressed_size -
// header_size - footer_size.
func Open(base io.Reader, e *zipfmt.Entry, opts ReadOptions) (*EntryReader, error) {
	header := HeaderSize(e)
	footer := FooterSize(e)

	cr, authenticate, err := newCipherReader(base, e, opts.Password, opts.DOSTimeHigh, opts.CRCHigh)
	if err != nil {
		return nil, err
	}

	maxTotalIn := opts.CompressedSize - int64(header) - int64(footer)
	if maxTotalIn < 0 {
		maxTotalIn = 0
	}

	method := e.Method
	if opts.Raw {
		method = zipfmt.Store
	}

	codec, err := newDecompressor(method, cr, maxTotalIn)
	if err != nil {
		return nil, err
	}

	return &EntryReader{
		crc:          newCRCObserverReader(codec),
		codec:        codec,
		authenticate: authenticate,
		footer:       make([]byte, footer),
		raw:          opts.Raw,
		method:       e.Method,
		wantCRC:      e.CRC32,
		aesVersion:   e.AESVersion,
		encrypted:    e.Encryption == zipfmt.EncryptionAES,
	}, nil
}

// Read decompresses (or, in raw mode, passes through) and returns
// plaintext, accumulating a running CRC32 as it goes.
func (er *EntryReader) Read(p []byte) (int, error) {
	return er.crc.Read(p)
}

// Close flushes the codec, verifies the observed CRC32 against the entry's
// stored value (unless raw mode or AE-2 AES close(read)
// rule), and authenticates the AES trailer when footerReader is non-nil.
func (er *EntryReader) Close(footerReader io.Reader) error {
	if err := er.codec.Close(); err != nil {
		return err
	}

	if footerReader != nil && len(er.footer) > 0 {
		if _, err := io.ReadFull(footerReader, er.footer); err != nil {
			return err
		}
		if err := er.authenticate(er.footer); err != nil {
			return err
		}
	}

	shouldCheckCRC := er.crc.total > 0 && !er.raw && !(er.encrypted && er.aesVersion == 2)
	if shouldCheckCRC && er.crc.crc != er.wantCRC {
		return ErrCRCMismatch
	}
	return nil
}

// TotalOut returns the number of plaintext bytes produced.
func (er *EntryReader) TotalOut() int64 { return er.crc.total }
