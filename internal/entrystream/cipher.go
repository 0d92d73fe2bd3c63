package entrystream

import (
	"fmt"
	"io"

	"github.com/arlyn/zipcore/internal/winzipaes"
	"github.com/arlyn/zipcore/internal/zipcrypto"
	"github.com/arlyn/zipcore/internal/zipfmt"
)

// cipherWriter is the innermost write-path layer: an optional encrypting
// wrapper around the base stream, or a pass-through when the entry is not
// encrypted.
type cipherWriter interface {
	io.WriteCloser
	TotalOut() int64
}

type passthroughCipherWriter struct {
	*countingWriter
}

func (p passthroughCipherWriter) Close() error   { return nil }
func (p passthroughCipherWriter) TotalOut() int64 { return p.n }

// newCipherWriter builds the cipher layer for e: AES when e.Encryption is
// AES, PKCrypt when it is ZipCrypto, else pass-through. The PKCrypt header
// carries a single check byte, the DOS-time high byte when DATA_DESCRIPTOR
// is set and the CRC high byte otherwise; no second verifier byte is
// written or checked.
func newCipherWriter(dst io.Writer, e *zipfmt.Entry, password []byte, dosTimeHigh, crcHigh byte) (cipherWriter, error) {
	switch e.Encryption {
	case zipfmt.EncryptionNone:
		return passthroughCipherWriter{&countingWriter{w: dst}}, nil
	case zipfmt.EncryptionAES:
		w, err := winzipaes.NewWriter(dst, password, int(e.AESEncryptionMode))
		if err != nil {
			return nil, fmt.Errorf("entrystream: AES writer: %w", err)
		}
		return w, nil
	case zipfmt.EncryptionZipCrypto:
		checkByte := crcHigh
		if e.Flags&zipfmt.FlagDataDescriptor != 0 {
			checkByte = dosTimeHigh
		}
		return zipcrypto.NewWriter(dst, password, checkByte), nil
	default:
		return nil, fmt.Errorf("entrystream: unknown encryption method %d", e.Encryption)
	}
}

// cipherReader is the innermost read-path layer.
type cipherReader interface {
	io.Reader
}

// newCipherReader builds the read-path cipher layer for e. For AES, the
// returned authenticate function lets the caller verify the trailing HMAC
// footer once the compressed payload has been fully consumed.
func newCipherReader(src io.Reader, e *zipfmt.Entry, password []byte, dosTimeHigh, crcHigh byte) (cipherReader, func([]byte) error, error) {
	switch e.Encryption {
	case zipfmt.EncryptionNone:
		return src, func([]byte) error { return nil }, nil
	case zipfmt.EncryptionAES:
		r, err := winzipaes.NewReader(src, password, int(e.AESEncryptionMode))
		if err != nil {
			return nil, nil, fmt.Errorf("entrystream: AES reader: %w", err)
		}
		return r, r.Authenticate, nil
	case zipfmt.EncryptionZipCrypto:
		checkByte := crcHigh
		if e.Flags&zipfmt.FlagDataDescriptor != 0 {
			checkByte = dosTimeHigh
		}
		r, err := zipcrypto.NewReader(src, password, checkByte)
		if err != nil {
			return nil, nil, fmt.Errorf("entrystream: ZipCrypto reader: %w", err)
		}
		return r, func([]byte) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("entrystream: unknown encryption method %d", e.Encryption)
	}
}

// HeaderSize returns the on-disk prefix length the cipher layer consumes
// before compressed data begins HEADER_SIZE property.
func HeaderSize(e *zipfmt.Entry) int {
	switch e.Encryption {
	case zipfmt.EncryptionAES:
		return winzipaes.HeaderSize(int(e.AESEncryptionMode))
	case zipfmt.EncryptionZipCrypto:
		return zipcrypto.HeaderSize
	default:
		return 0
	}
}

// FooterSize returns the trailing authentication footer length, per
// FOOTER_SIZE property.
func FooterSize(e *zipfmt.Entry) int {
	if e.Encryption == zipfmt.EncryptionAES {
		return winzipaes.FooterSize
	}
	return 0
}
