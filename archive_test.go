package zipcore

import (
	"archive/zip"
	"bytes"
	"hash/crc32"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go4.org/readerutil"

	"github.com/arlyn/zipcore/internal/zipfmt"
)

func TestStaticArchiveReadableByStdlibZip(t *testing.T) {
	content := []byte("hello, static archive")
	entry := &StaticEntry{
		Entry: &zipfmt.Entry{
			Name:             "hello.txt",
			Method:           zipfmt.Store,
			Modified:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			CRC32:            crc32.ChecksumIEEE(content),
			CompressedSize:   uint64(len(content)),
			UncompressedSize: uint64(len(content)),
		},
		Content: bytes.NewReader(content),
	}

	ar, err := NewStaticArchive([]*StaticEntry{entry}, "a comment", time.Time{}, nil, 0)
	if err != nil {
		t.Fatalf("NewStaticArchive: %v", err)
	}

	raw := make([]byte, ar.Size())
	if _, err := ar.ReadAt(raw, 0); err != nil && err != io.EOF {
		t.Fatalf("ReadAt: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("got %d files, want 1", len(zr.File))
	}
	f := zr.File[0]
	if f.Name != "hello.txt" {
		t.Errorf("Name = %q", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %q, want %q", got, content)
	}
	if zr.Comment != "a comment" {
		t.Errorf("Comment = %q", zr.Comment)
	}
}

func TestStaticArchiveMultiPartContent(t *testing.T) {
	part1 := []byte("abcde")
	part2 := []byte("fghij")
	combined := readerutil.NewMultiReaderAt(
		bytes.NewReader(part1),
		bytes.NewReader(part2),
	)
	want := append(append([]byte{}, part1...), part2...)

	entry := &StaticEntry{
		Entry: &zipfmt.Entry{
			Name:             "joined.bin",
			Method:           zipfmt.Store,
			CRC32:            crc32.ChecksumIEEE(want),
			CompressedSize:   uint64(len(want)),
			UncompressedSize: uint64(len(want)),
		},
		Content: combined,
	}

	ar, err := NewStaticArchive([]*StaticEntry{entry}, "", time.Time{}, nil, 0)
	if err != nil {
		t.Fatalf("NewStaticArchive: %v", err)
	}

	raw := make([]byte, ar.Size())
	if _, err := ar.ReadAt(raw, 0); err != nil && err != io.EOF {
		t.Fatalf("ReadAt: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStaticArchiveWithPrefixStub(t *testing.T) {
	content := []byte("prefixed content")
	stub := []byte("#!/bin/sh\nexit 0\n")
	entry := &StaticEntry{
		Entry: &zipfmt.Entry{
			Name:             "prefixed.txt",
			Method:           zipfmt.Store,
			CRC32:            crc32.ChecksumIEEE(content),
			CompressedSize:   uint64(len(content)),
			UncompressedSize: uint64(len(content)),
		},
		Content: bytes.NewReader(content),
	}

	ar, err := NewStaticArchive([]*StaticEntry{entry}, "", time.Time{}, bytes.NewReader(stub), int64(len(stub)))
	if err != nil {
		t.Fatalf("NewStaticArchive: %v", err)
	}

	raw := make([]byte, ar.Size())
	if _, err := ar.ReadAt(raw, 0); err != nil && err != io.EOF {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(raw[:len(stub)], stub) {
		t.Errorf("prefix bytes = %q, want %q", raw[:len(stub)], stub)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %q, want %q", got, content)
	}
}

func TestStaticArchiveServeHTTPRangeRequest(t *testing.T) {
	content := []byte("range me please")
	entry := &StaticEntry{
		Entry: &zipfmt.Entry{
			Name:             "range.txt",
			Method:           zipfmt.Store,
			CRC32:            crc32.ChecksumIEEE(content),
			CompressedSize:   uint64(len(content)),
			UncompressedSize: uint64(len(content)),
		},
		Content: bytes.NewReader(content),
	}
	ar, err := NewStaticArchive([]*StaticEntry{entry}, "", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, 0)
	if err != nil {
		t.Fatalf("NewStaticArchive: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/archive.zip", nil)
	req.Header.Set("Range", "bytes=0-3")
	rec := httptest.NewRecorder()
	ar.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPartialContent)
	}
	if rec.Body.Len() != 4 {
		t.Errorf("body len = %d, want 4", rec.Body.Len())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
}
