// Package zipcore implements a PKWARE ZIP archive engine: local/central
// header codecs, ZIP64 upgrade and offset-shift repair, a three-layer
// per-entry compression/encryption stack, and an Archive façade tying
// them together for read, write, and append access to a ZIP stream.
//
// The archive handle is single-threaded and not reentrant, matching
// martin-sucha-zipserve's synchronous, non-concurrent Archive. Callers
// wanting parallelism should shard across multiple Archive handles backed
// by separate streams.
package zipcore

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/arlyn/zipcore/internal/centraldir"
	"github.com/arlyn/zipcore/internal/zipfmt"
	"github.com/arlyn/zipcore/internal/zipmeta"
)

// Mode selects how Open interprets the stream.
type Mode int

const (
	// ModeRead opens an existing archive for reading. The central
	// directory is located and fully parsed into memory at Open time.
	ModeRead Mode = iota
	// ModeWrite starts a fresh archive, ignoring any prior contents of
	// stream. Equivalent to the source's CREATE mode.
	ModeWrite
	// ModeAppend opens an existing archive, if any, and positions the
	// write cursor at the start of its central directory so new entries
	// are written in place of the old CD, which is rewritten on Close.
	// With no existing central directory, behaves like ModeWrite but
	// starts at the stream's current end instead of offset zero.
	ModeAppend
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "READ"
	case ModeWrite:
		return "WRITE"
	case ModeAppend:
		return "APPEND"
	default:
		return "UNKNOWN"
	}
}

// defaultVersionMadeBy stamps new entries with a Unix host byte and the
// baseline PKWARE version; bumped per-entry by the header codec when
// ZIP64 or AES requires a newer version_needed.
var defaultVersionMadeBy = uint16(zipmeta.HostByte(zipmeta.Unix))<<8 | zipfmt.Version20

// Archive is a handle over a ZIP stream opened for read, write, or
// append. It is not safe for concurrent use.
type Archive struct {
	stream io.ReadWriteSeeker
	mode   Mode
	closed bool

	comment         string
	versionMadeBy   uint16
	zip64Policy     zipfmt.Zip64Policy
	compressLevel   int
	password        []byte
	logger          *slog.Logger
	maxCommentBytes int

	// Read-side state: the full central directory, materialized once at
	// Open time, plus a parallel slice of each entry's byte offset within
	// cdBytes, usable as a stable iteration cursor.
	cdBytes      []byte
	entries      []*zipfmt.Entry
	entryOffsets []int64
	cursor       int // index into entries; -1 means no current entry
	offsetShift  int64

	// Write-side state.
	cdWriter         *centraldir.Writer
	writeOffset      uint64
	diskNumberWithCD uint32
	openWriter       *EntryWriter
}

// Open opens stream under mode. For ModeRead/ModeAppend it locates and
// parses the existing central directory, if any; for ModeWrite it starts
// a fresh archive.
func Open(stream io.ReadWriteSeeker, mode Mode, opts ...Option) (*Archive, error) {
	if stream == nil {
		return nil, newErr("Open", CodeParam, fmt.Errorf("nil stream"))
	}

	a := &Archive{
		stream:          stream,
		mode:            mode,
		versionMadeBy:   defaultVersionMadeBy,
		zip64Policy:     zipfmt.Zip64Auto,
		compressLevel:   -1,
		logger:          slog.Default(),
		maxCommentBytes: zipfmt.Uint16Max,
		cursor:          -1,
	}
	for _, opt := range opts {
		opt(a)
	}

	switch mode {
	case ModeRead:
		if err := a.openRead(false); err != nil {
			return nil, wrapErr("Open", err)
		}
	case ModeAppend:
		if err := a.openRead(true); err != nil {
			if err == errNoExistingArchive {
				if err := a.startFreshAtEnd(); err != nil {
					return nil, wrapErr("Open", err)
				}
				break
			}
			return nil, wrapErr("Open", err)
		}
	case ModeWrite:
		if err := a.startFreshAtZero(); err != nil {
			return nil, wrapErr("Open", err)
		}
	default:
		return nil, newErr("Open", CodeParam, fmt.Errorf("unknown mode %v", mode))
	}

	return a, nil
}

func (a *Archive) startFreshAtZero() error {
	if _, err := a.stream.Seek(0, io.SeekStart); err != nil {
		return err
	}
	a.cdWriter = centraldir.NewWriter(nil, 0)
	a.writeOffset = 0
	return nil
}

func (a *Archive) startFreshAtEnd() error {
	end, err := a.stream.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	a.cdWriter = centraldir.NewWriter(nil, 0)
	a.writeOffset = uint64(end)
	return nil
}

// Close flushes any open entry and, for ModeWrite/ModeAppend, writes the
// central directory and EOCD record(s). It does not close the underlying
// stream, which remains owned by the caller.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	if a.openWriter != nil {
		if err := a.openWriter.Close(); err != nil {
			return wrapErr("Close", err)
		}
	}

	if a.mode == ModeRead {
		return nil
	}

	if _, err := a.stream.Seek(int64(a.writeOffset), io.SeekStart); err != nil {
		return wrapErr("Close", err)
	}
	err := a.cdWriter.Flush(a.stream, a.writeOffset, a.diskNumberWithCD, a.versionMadeBy, a.comment, a.zip64Policy)
	a.cdWriter.Release()
	if err != nil {
		return wrapErr("Close", err)
	}
	return nil
}

// Comment returns the archive-level comment, as set or as read from an
// existing archive.
func (a *Archive) Comment() string { return a.comment }

// SetComment sets the archive-level comment written at Close.
func (a *Archive) SetComment(c string) error {
	if len(c) > zipfmt.Uint16Max {
		return newErr("SetComment", CodeParam, fmt.Errorf("comment too long: %d bytes", len(c)))
	}
	a.comment = c
	return nil
}

// VersionMadeBy returns the version_madeby value stamped on new entries.
func (a *Archive) VersionMadeBy() uint16 { return a.versionMadeBy }

// SetVersionMadeBy changes the version_madeby value stamped on new
// entries that don't specify their own.
func (a *Archive) SetVersionMadeBy(v uint16) { a.versionMadeBy = v }

// EntryCount returns the number of entries found in the archive's central
// directory. Only meaningful after a read/append Open.
func (a *Archive) EntryCount() int { return len(a.entries) }
