package zipcore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/arlyn/zipcore/internal/centraldir"
	"github.com/arlyn/zipcore/internal/entrystream"
	"github.com/arlyn/zipcore/internal/header"
	"github.com/arlyn/zipcore/internal/zipfmt"
	"github.com/arlyn/zipcore/internal/zipmeta"
)

// errNoExistingArchive signals to Open that ModeAppend found no EOCD and
// should fall back to starting a fresh archive at end-of-stream.
var errNoExistingArchive = errors.New("zipcore: no existing archive")

// openRead locates and fully parses the central directory into memory.
// When forAppend is true, a missing EOCD is reported as
// errNoExistingArchive instead of a format error, and the Writer is
// seeded from the existing CD bytes so new entries can be appended.
func (a *Archive) openRead(forAppend bool) error {
	seeker, ok := a.stream.(io.ReadSeeker)
	if !ok {
		return fmt.Errorf("zipcore: stream does not support seeking for read")
	}

	eocdOffset, info, err := centraldir.FindEOCD(seeker)
	if err != nil {
		if forAppend && errors.Is(err, centraldir.ErrNoEOCDFound) {
			return errNoExistingArchive
		}
		return err
	}

	resolved, err := centraldir.Resolve(seeker, eocdOffset, info)
	if err != nil {
		return err
	}
	if err := centraldir.ConsistencyCheck(eocdOffset, resolved); err != nil {
		return err
	}
	if len(resolved.Comment) > a.maxCommentBytes {
		return fmt.Errorf("%w: archive comment exceeds %d bytes", centraldir.ErrFormat, a.maxCommentBytes)
	}

	a.comment = resolved.Comment
	a.versionMadeBy = resolved.VersionMadeBy
	a.diskNumberWithCD = resolved.DiskNumberWithCD
	a.offsetShift = resolved.OffsetShift

	cdStart := int64(resolved.CDOffset) + resolved.OffsetShift
	if cdStart < 0 {
		return fmt.Errorf("%w: central directory offset goes negative after shift repair", centraldir.ErrFormat)
	}
	if _, err := seeker.Seek(cdStart, io.SeekStart); err != nil {
		return err
	}
	cdBytes := make([]byte, resolved.CDSize)
	if _, err := io.ReadFull(a.stream, cdBytes); err != nil {
		return err
	}
	a.cdBytes = cdBytes

	entries, offsets, err := parseCentralDirectory(cdBytes, resolved.OffsetShift, resolved.NumberEntry)
	if err != nil {
		return err
	}
	a.entries = entries
	a.entryOffsets = offsets

	if forAppend {
		a.cdWriter = centraldir.NewWriter(cdBytes, uint64(len(entries)))
		a.writeOffset = uint64(cdStart)
	}

	return nil
}

func parseCentralDirectory(cdBytes []byte, offsetShift int64, wantCount uint64) ([]*zipfmt.Entry, []int64, error) {
	var entries []*zipfmt.Entry
	var offsets []int64

	cr := bytes.NewReader(cdBytes)
	for cr.Len() > 0 {
		offset := int64(len(cdBytes)) - int64(cr.Len())
		e, err := header.ReadCentral(cr)
		if err == header.ErrEndOfList {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		e.DiskOffset += uint64(offsetShift)
		entries = append(entries, e)
		offsets = append(offsets, offset)
	}
	if uint64(len(entries)) != wantCount {
		return nil, nil, fmt.Errorf("%w: central directory holds %d entries, EOCD declares %d", centraldir.ErrFormat, len(entries), wantCount)
	}
	return entries, offsets, nil
}

// FirstEntry moves the iteration cursor to the first entry. Reports false
// (with the cursor left unset) when the archive has no entries.
func (a *Archive) FirstEntry() bool {
	if len(a.entries) == 0 {
		a.cursor = -1
		return false
	}
	a.cursor = 0
	return true
}

// NextEntry advances the iteration cursor by one entry.
func (a *Archive) NextEntry() bool {
	if a.cursor < 0 || a.cursor+1 >= len(a.entries) {
		return false
	}
	a.cursor++
	return true
}

// EntryAt moves the cursor to the entry whose cursor position (as
// returned by CurrentEntry) equals pos.
func (a *Archive) EntryAt(pos int64) bool {
	for i, off := range a.entryOffsets {
		if off == pos {
			a.cursor = i
			return true
		}
	}
	return false
}

// CurrentEntry returns the entry at the iteration cursor and its stable
// cursor position (the entry's byte offset within the central
// directory), or ok=false if no entry is current.
func (a *Archive) CurrentEntry() (e *zipfmt.Entry, pos int64, ok bool) {
	if a.cursor < 0 || a.cursor >= len(a.entries) {
		return nil, 0, false
	}
	return a.entries[a.cursor], a.entryOffsets[a.cursor], true
}

// Locate searches for an entry by name, treating '/' and '\' as
// equivalent path separators and optionally ignoring case. If the
// current entry already matches, it returns immediately without
// scanning. Otherwise it scans from the first entry.
func (a *Archive) Locate(name string, ignoreCase bool) bool {
	if e, _, ok := a.CurrentEntry(); ok && ComparePaths(e.Name, name, ignoreCase) == 0 {
		return true
	}
	for i, e := range a.entries {
		if ComparePaths(e.Name, name, ignoreCase) == 0 {
			a.cursor = i
			return true
		}
	}
	return false
}

// ComparePaths compares two ZIP entry paths, treating '\' as equivalent
// to '/' and, when ignoreCase is true, folding case. Returns a negative
// number, zero, or a positive number as a sorts before, equal to, or
// after b: ComparePaths(a, b, ic) == -ComparePaths(b, a, ic), and the
// result is zero iff the two paths agree modulo slash direction (and
// case, when ignoreCase is set).
func ComparePaths(a, b string, ignoreCase bool) int {
	na, nb := normalizePath(a), normalizePath(b)
	if ignoreCase {
		na, nb = strings.ToLower(na), strings.ToLower(nb)
	}
	return strings.Compare(na, nb)
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// EntryReader reads one entry's decompressed content. Obtain one via
// Archive.OpenCurrentEntry; at most one may be open at a time.
type EntryReader struct {
	er     *entrystream.EntryReader
	stream io.Reader
}

func (r *EntryReader) Read(p []byte) (int, error) { return r.er.Read(p) }

// Close finishes decompression, verifies the CRC32 (unless Raw was set
// or the entry uses AE-2 AES), and authenticates the AES trailer when
// present.
func (r *EntryReader) Close() error {
	if err := r.er.Close(r.stream); err != nil {
		return wrapErr("EntryReader.Close", err)
	}
	return nil
}

// ReadOptions configures OpenCurrentEntry.
type ReadOptions struct {
	Password []byte
	// Raw bypasses decompression, handing back the on-disk compressed
	// bytes unmodified and skipping the CRC check at Close (minizip's
	// raw-copy mode, useful for recompressing or re-archiving entries
	// without a round trip through the codec).
	Raw bool
}

// OpenCurrentEntry opens the entry under the iteration cursor for
// reading. The returned EntryReader must be closed before the next
// OpenCurrentEntry or archive Close call.
func (a *Archive) OpenCurrentEntry(opts ReadOptions) (*EntryReader, error) {
	e, _, ok := a.CurrentEntry()
	if !ok {
		return nil, newErr("OpenCurrentEntry", CodeParam, fmt.Errorf("no current entry"))
	}
	password := opts.Password
	if password == nil {
		password = a.password
	}

	if _, err := a.stream.Seek(int64(e.DiskOffset), io.SeekStart); err != nil {
		return nil, wrapErr("OpenCurrentEntry", err)
	}
	local, err := header.ReadLocal(a.stream)
	if err != nil {
		return nil, wrapErr("OpenCurrentEntry", err)
	}

	_, clock := zipmeta.EncodeDOSTime(local.Modified)
	dosTimeHigh := byte(clock >> 8)
	crcHigh := byte(e.CRC32 >> 24)

	core, err := entrystream.Open(a.stream, e, entrystream.ReadOptions{
		Password:       password,
		DOSTimeHigh:    dosTimeHigh,
		CRCHigh:        crcHigh,
		CompressedSize: int64(e.CompressedSize),
		Raw:            opts.Raw,
	})
	if err != nil {
		return nil, wrapErr("OpenCurrentEntry", err)
	}

	return &EntryReader{er: core, stream: a.stream}, nil
}
