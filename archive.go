// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

// StaticArchive is a convenience layer for serving a fixed set of
// precompressed entries over HTTP with range and resumable-download
// support. It requires the CRC32, compressed and uncompressed size of
// each entry to be supplied up front, and fetches file content on demand
// from a user-provided ReaderAt so it never has to hold entry bytes in
// memory itself.

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arlyn/zipcore/internal/centraldir"
	"github.com/arlyn/zipcore/internal/header"
	"github.com/arlyn/zipcore/internal/zipfmt"
)

// StaticEntry is one file or directory in a StaticArchive.
type StaticEntry struct {
	// Entry carries the entry's metadata. CRC32, CompressedSize and
	// UncompressedSize must already hold their final values; Method and
	// Encryption must match how Content was produced, since it is copied
	// into the archive unmodified.
	*zipfmt.Entry

	// Content is the entry's on-disk payload: compressed and, if
	// Encryption is set, already encrypted. Nil for directory entries.
	//
	// Content may implement ReaderAt from this package, in which case its
	// ReadAtContext method is called instead of ReadAt.
	Content io.ReaderAt
}

// StaticArchive is a precomputed ZIP archive served from static,
// already-compressed entry content fetched on demand.
//
// It is a ReaderAt, so it allows concurrent access to different byte
// ranges of the archive.
type StaticArchive struct {
	parts      multiReaderAt
	createTime time.Time
	etag       string
}

// NewStaticArchive builds a StaticArchive from entries plus an
// archive-level comment and creation time.
//
// The archive stores entry metadata (central directory, local headers) in
// memory; entry content is fetched on demand through each StaticEntry's
// Content. createTime, if zero, defaults to the latest entry's Modified
// time.
//
// prefix, if non-nil, is arbitrary content placed before the first ZIP
// entry — for example a self-extracting-archive stub. prefixSize must
// match its exact byte length; every entry's DiskOffset and the central
// directory's offset are shifted past it automatically.
//
// entries becomes owned by the archive and must not be modified afterward.
func NewStaticArchive(entries []*StaticEntry, comment string, createTime time.Time, prefix io.ReaderAt, prefixSize int64) (*StaticArchive, error) {
	if len(comment) > zipfmt.Uint16Max {
		return nil, fmt.Errorf("zipcore: archive comment too long")
	}

	ar := new(StaticArchive)
	etagHash := md5.New()
	cdw := centraldir.NewWriter(nil, 0)
	defer cdw.Release()

	if prefix != nil {
		ar.parts.add(readerAt(prefix), prefixSize)
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(prefixSize))
		etagHash.Write(buf[:])
	}

	var maxTime time.Time

	for _, se := range entries {
		se.Entry.DiskOffset = uint64(ar.parts.size)
		if se.VersionMadeBy == 0 {
			se.VersionMadeBy = defaultVersionMadeBy
		}
		if se.Encryption != zipfmt.EncryptionNone {
			se.Flags |= zipfmt.FlagEncrypted
		}

		var localBuf bytes.Buffer
		if err := header.WriteLocal(&localBuf, se.Entry, true); err != nil {
			return nil, fmt.Errorf("zipcore: writing local header for %q: %w", se.Name, err)
		}
		ar.parts.addSizeReaderAt(bytes.NewReader(localBuf.Bytes()))
		etagHash.Write(localBuf.Bytes())

		switch {
		case se.Content != nil:
			ar.parts.add(readerAt(se.Content), int64(se.CompressedSize))
			var sizeBuf [8]byte
			binary.LittleEndian.PutUint64(sizeBuf[:], se.CompressedSize)
			etagHash.Write(sizeBuf[:])
		case se.CompressedSize != 0:
			return nil, fmt.Errorf("zipcore: entry %q has nonzero size but no content", se.Name)
		}

		if err := cdw.Append(se.Entry); err != nil {
			return nil, fmt.Errorf("zipcore: appending %q to central directory: %w", se.Name, err)
		}

		if se.Modified.After(maxTime) {
			maxTime = se.Modified
		}
	}

	var cdBuf bytes.Buffer
	if err := cdw.Flush(&cdBuf, uint64(ar.parts.size), 0, defaultVersionMadeBy, comment, zipfmt.Zip64Auto); err != nil {
		return nil, fmt.Errorf("zipcore: flushing central directory: %w", err)
	}
	ar.parts.addSizeReaderAt(bytes.NewReader(cdBuf.Bytes()))
	etagHash.Write(cdBuf.Bytes())

	ar.createTime = createTime
	if ar.createTime.IsZero() {
		ar.createTime = maxTime
	}
	ar.etag = fmt.Sprintf("%q", hex.EncodeToString(etagHash.Sum(nil)))

	return ar, nil
}

func readerAt(r io.ReaderAt) ReaderAt {
	if v, ok := r.(ReaderAt); ok {
		return v
	}
	return ignoreContext{r: r}
}

// Size returns the size of the archive in bytes.
func (ar *StaticArchive) Size() int64 { return ar.parts.Size() }

// ReadAt provides the data of the archive.
//
// This is the same as calling ReadAtContext with context.TODO().
//
// See io.ReaderAt for the interface.
func (ar *StaticArchive) ReadAt(p []byte, off int64) (int, error) {
	return ar.parts.ReadAtContext(context.TODO(), p, off)
}

// ReadAtContext provides the data of the archive.
//
// The context is passed to ReadAtContext of individual entries, if they
// implement it. The context is ignored if an entry implements just
// io.ReaderAt.
func (ar *StaticArchive) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	return ar.parts.ReadAtContext(ctx, p, off)
}

// ServeHTTP serves the archive over HTTP.
//
// ServeHTTP supports range headers, see http.ServeContent for details.
//
// Content-Type and Etag headers are added automatically if not already
// present in the ResponseWriter.
func (ar *StaticArchive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, haveType := w.Header()["Content-Type"]
	if !haveType {
		w.Header().Set("Content-Type", "application/zip")
	}

	_, haveEtag := w.Header()["Etag"]
	if !haveEtag {
		w.Header().Set("Etag", ar.etag)
	}

	readseeker := io.NewSectionReader(withContext{r: &ar.parts, ctx: r.Context()}, 0, ar.parts.Size())
	http.ServeContent(w, r, "", ar.createTime, readseeker)
}
