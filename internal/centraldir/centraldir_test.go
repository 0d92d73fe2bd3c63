package centraldir

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/arlyn/zipcore/internal/zipfmt"
)

type memRWS struct {
	*bytes.Reader
}

func newMemRWS(b []byte) *memRWS { return &memRWS{bytes.NewReader(b)} }

func buildSimpleArchive(t *testing.T, comment string) []byte {
	t.Helper()
	var dst bytes.Buffer

	w := NewWriter(nil, 0)
	defer w.Release()
	if err := w.Append(&zipfmt.Entry{
		Method: zipfmt.Store,
		Name:   "a.txt",
		CRC32:  1,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	cdOffset := uint64(0)
	if err := w.Flush(&dst, cdOffset, 0, 0x0314, comment, zipfmt.Zip64Auto); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return dst.Bytes()
}

func TestFindEOCDSimple(t *testing.T) {
	data := buildSimpleArchive(t, "hello")
	r := newMemRWS(data)
	off, info, err := FindEOCD(r)
	if err != nil {
		t.Fatalf("FindEOCD: %v", err)
	}
	if info.Comment != "hello" {
		t.Errorf("Comment = %q", info.Comment)
	}
	if info.CDCount != 1 {
		t.Errorf("CDCount = %d", info.CDCount)
	}
	if off <= 0 {
		t.Errorf("off = %d, want > 0", off)
	}
}

func TestFindEOCDNotFound(t *testing.T) {
	r := newMemRWS([]byte("not a zip file at all"))
	if _, _, err := FindEOCD(r); err != ErrNoEOCDFound {
		t.Errorf("err = %v, want ErrNoEOCDFound", err)
	}
}

func TestFindEOCDWithPrependedJunk(t *testing.T) {
	junk := bytes.Repeat([]byte{0x41}, 2000)
	// EOCD search only looks at the tail so prepended bytes shouldn't
	// affect signature discovery, only the declared cd_offset's accuracy
	// (handled separately by offset-shift repair).
	data := append(append([]byte{}, junk...), buildSimpleArchive(t, "")...)
	r := newMemRWS(data)
	_, info, err := FindEOCD(r)
	if err != nil {
		t.Fatalf("FindEOCD: %v", err)
	}
	if info.CDCount != 1 {
		t.Errorf("CDCount = %d", info.CDCount)
	}
}

func TestResolveAndOffsetShiftRepair(t *testing.T) {
	base := buildSimpleArchive(t, "")
	junk := bytes.Repeat([]byte{0x00}, 1024)
	shifted := append(append([]byte{}, junk...), base...)

	r := newMemRWS(shifted)
	off, info, err := FindEOCD(r)
	if err != nil {
		t.Fatalf("FindEOCD: %v", err)
	}
	res, err := Resolve(r, off, info)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.OffsetShift != 1024 {
		t.Errorf("OffsetShift = %d, want 1024", res.OffsetShift)
	}
	if err := ConsistencyCheck(off, res); err != nil {
		t.Errorf("ConsistencyCheck: %v", err)
	}
}

func TestResolveNoShiftNeeded(t *testing.T) {
	data := buildSimpleArchive(t, "")
	r := newMemRWS(data)
	off, info, err := FindEOCD(r)
	if err != nil {
		t.Fatalf("FindEOCD: %v", err)
	}
	res, err := Resolve(r, off, info)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.OffsetShift != 0 {
		t.Errorf("OffsetShift = %d, want 0", res.OffsetShift)
	}
}

func TestConsistencyCheckRejectsDiskCountMismatch(t *testing.T) {
	data := buildSimpleArchive(t, "")
	r := newMemRWS(data)
	off, info, err := FindEOCD(r)
	if err != nil {
		t.Fatalf("FindEOCD: %v", err)
	}
	res, err := Resolve(r, off, info)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res.CDCountOnDisk = res.NumberEntry + 1
	if err := ConsistencyCheck(off, res); !errors.Is(err, ErrFormat) {
		t.Errorf("ConsistencyCheck err = %v, want ErrFormat", err)
	}
}

func TestFlushForcesZip64(t *testing.T) {
	var dst bytes.Buffer
	w := NewWriter(nil, 0)
	defer w.Release()
	if err := w.Append(&zipfmt.Entry{Method: zipfmt.Store, Name: "a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Flush(&dst, 0, 0, 0, "", zipfmt.Zip64Force); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := newMemRWS(dst.Bytes())
	off, info, err := FindEOCD(r)
	if err != nil {
		t.Fatalf("FindEOCD: %v", err)
	}
	if info.CDCount != zipfmt.Uint16Max {
		t.Errorf("CDCount = %#x, want sentinel", info.CDCount)
	}
	res, err := Resolve(r, off, info)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.NumberEntry != 1 {
		t.Errorf("NumberEntry = %d, want 1", res.NumberEntry)
	}
}

func TestResolveEmptyCentralDirectory(t *testing.T) {
	var dst bytes.Buffer
	w := NewWriter(nil, 0)
	defer w.Release()
	if err := w.Flush(&dst, 0, 0, 0, "", zipfmt.Zip64Auto); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if int64(dst.Len()) != zipfmt.EOCDLen {
		t.Fatalf("len = %d, want %d", dst.Len(), zipfmt.EOCDLen)
	}

	r := newMemRWS(dst.Bytes())
	off, info, err := FindEOCD(r)
	if err != nil {
		t.Fatalf("FindEOCD: %v", err)
	}
	if off != 0 {
		t.Errorf("off = %d, want 0", off)
	}
	res, err := Resolve(r, off, info)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.CDSize != 0 || res.OffsetShift != 0 {
		t.Errorf("res = %+v, want CDSize 0 and OffsetShift 0", res)
	}
	if err := ConsistencyCheck(off, res); err != nil {
		t.Errorf("ConsistencyCheck: %v", err)
	}
}

var _ io.ReadSeeker = (*memRWS)(nil)
