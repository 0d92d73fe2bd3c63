// Package binio provides the little-endian binary I/O primitives and the
// Stream capability abstraction that the rest of the archive engine is
// built on.
package binio

import (
	"errors"
	"io"
)

// PropID identifies a property on the typed property bag every Stream
// exposes: per-entry codec budgeting (TotalIn/TotalOut/.../CompressLevel)
// and spanning-disk selection (DiskNumber/DiskSize).
type PropID int

const (
	// DiskNumber selects a spanning segment for reading, or -1 to force the
	// main disk.
	DiskNumber PropID = iota
	// DiskSize is read-only; nonzero iff the store is a spanning writer.
	DiskSize
	TotalIn
	TotalOut
	TotalInMax
	TotalOutMax
	HeaderSize
	FooterSize
	CompressLevel
)

// Stream is the base storage capability the archive engine is built over.
// Concrete base streams (file, memory, spanning writer) are external
// collaborators; FileStream and MemStream below are minimal reference
// implementations that do not support spanning.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
	Prop(id PropID) (int64, bool)
	SetProp(id PropID, v int64) error
}

// ErrUnsupportedProp is returned by SetProp for properties a Stream
// implementation does not support.
var ErrUnsupportedProp = errors.New("binio: unsupported property")

// CopyN copies exactly n bytes from src to dst, returning an error if
// fewer bytes were available.
func CopyN(dst io.Writer, src io.Reader, n int64) error {
	written, err := io.CopyN(dst, src, n)
	if err != nil {
		return err
	}
	if written != n {
		return io.ErrShortWrite
	}
	return nil
}
