// Package winzipaes implements the WinZip AES encryption scheme (AE-1/AE-2):
// a PBKDF2-derived key pair (encryption key + HMAC-SHA1 authentication key),
// AES in CTR mode, a random salt prefix, a 2-byte password-verification
// value, and a 10-byte HMAC-SHA1 trailer. Built on golang.org/x/crypto/pbkdf2,
// already part of the pack's dependency graph via AndreiTelteu-ZipCrack's
// go.mod.
package winzipaes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"errors"
	"hash"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrBadPassword is returned when the 2-byte password-verification value
// doesn't match, on decrypt-side open.
var ErrBadPassword = errors.New("winzipaes: incorrect password")

// ErrAuthentication is returned when the HMAC-SHA1 trailer doesn't match
// the computed authentication code, on decrypt-side close.
var ErrAuthentication = errors.New("winzipaes: authentication failed")

const (
	pbkdf2Iterations = 1000
	macSize          = 10
	verifierSize     = 2
)

func keyLen(bits int) int { return bits / 8 }

func saltLen(bits int) int {
	switch bits {
	case 128:
		return 8
	case 192:
		return 12
	case 256:
		return 16
	default:
		return 16
	}
}

// HeaderSize returns the on-disk prefix length (salt + 2-byte verifier)
// for the given AES key strength in bits.
func HeaderSize(bits int) int { return saltLen(bits) + verifierSize }

// FooterSize is the HMAC-SHA1 authentication trailer length.
const FooterSize = macSize

func deriveKeys(password []byte, salt []byte, bits int) (encKey, macKey []byte, verifier []byte) {
	kl := keyLen(bits)
	total := pbkdf2.Key(password, salt, pbkdf2Iterations, 2*kl+verifierSize, sha1.New)
	return total[:kl], total[kl : 2*kl], total[2*kl:]
}

// Writer encrypts plaintext written to it with AES-CTR, writing the salt +
// verifier header on first write and the HMAC trailer on Close.
type Writer struct {
	dst    io.Writer
	stream cipher.Stream
	mac    hash.Hash
	bits   int
	wrote  bool
	total  int64
	salt   []byte
	verify []byte
}

// NewWriter returns a Writer that encrypts to dst using password at the
// given AES key strength in bits (128/192/256).
func NewWriter(dst io.Writer, password []byte, bits int) (*Writer, error) {
	salt := make([]byte, saltLen(bits))
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	encKey, macKey, verifier := deriveKeys(password, salt, bits)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize) // AES-CTR counter starts at zero per the WinZip AES spec
	stream := cipher.NewCTR(block, iv)

	return &Writer{
		dst:    dst,
		stream: stream,
		mac:    hmac.New(sha1.New, macKey),
		bits:   bits,
		salt:   salt,
		verify: verifier,
	}, nil
}

func (w *Writer) writeHeader() error {
	if _, err := w.dst.Write(w.salt); err != nil {
		return err
	}
	if _, err := w.dst.Write(w.verify); err != nil {
		return err
	}
	w.total += int64(len(w.salt) + len(w.verify))
	return nil
}

// Write encrypts p, updates the running HMAC over ciphertext, and writes it
// to the underlying stream.
func (w *Writer) Write(p []byte) (int, error) {
	if !w.wrote {
		w.wrote = true
		if err := w.writeHeader(); err != nil {
			return 0, err
		}
	}
	out := make([]byte, len(p))
	w.stream.XORKeyStream(out, p)
	w.mac.Write(out)
	n, err := w.dst.Write(out)
	w.total += int64(n)
	return n, err
}

// Close writes the header (if no data was ever written) and appends the
// 10-byte HMAC-SHA1 authentication trailer.
func (w *Writer) Close() error {
	if !w.wrote {
		w.wrote = true
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	sum := w.mac.Sum(nil)[:macSize]
	n, err := w.dst.Write(sum)
	w.total += int64(n)
	return err
}

// TotalOut returns the total number of bytes written, including the
// salt/verifier header and the HMAC trailer. This is the value callers
// should use as the final compressed size for an AES-encrypted entry,
// since the trailer is part of the on-disk payload.
func (w *Writer) TotalOut() int64 { return w.total }

// Reader decrypts AES-CTR ciphertext read from src, verifying the password
// at construction and the HMAC trailer when Authenticate is called. Callers
// are expected to present exactly
// compressed_size - HeaderSize(bits) - FooterSize bytes of ciphertext
// before EOF (the budgeting is the caller's responsibility, mirroring
// TOTAL_IN_MAX plumbing one layer down).
type Reader struct {
	src    io.Reader
	stream cipher.Stream
	mac    hash.Hash
}

// NewReader reads the salt + verifier header from src and checks the
// password before returning.
func NewReader(src io.Reader, password []byte, bits int) (*Reader, error) {
	salt := make([]byte, saltLen(bits))
	if _, err := io.ReadFull(src, salt); err != nil {
		return nil, err
	}
	verifier := make([]byte, verifierSize)
	if _, err := io.ReadFull(src, verifier); err != nil {
		return nil, err
	}
	encKey, macKey, wantVerifier := deriveKeys(password, salt, bits)
	if verifier[0] != wantVerifier[0] || verifier[1] != wantVerifier[1] {
		return nil, ErrBadPassword
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	stream := cipher.NewCTR(block, iv)

	return &Reader{
		src:    src,
		stream: stream,
		mac:    hmac.New(sha1.New, macKey),
	}, nil
}

// Read decrypts ciphertext from src, folding it into the running HMAC.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.mac.Write(p[:n])
		out := make([]byte, n)
		r.stream.XORKeyStream(out, p[:n])
		copy(p[:n], out)
	}
	return n, err
}

// Authenticate compares trailer (the FooterSize bytes read immediately
// after the ciphertext) against the computed HMAC
// AES close-read authentication step.
func (r *Reader) Authenticate(trailer []byte) error {
	if !hmac.Equal(r.mac.Sum(nil)[:macSize], trailer) {
		return ErrAuthentication
	}
	return nil
}
