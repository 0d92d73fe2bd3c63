package extra

import (
	"reflect"
	"testing"
)

func TestParseBuilderRoundTrip(t *testing.T) {
	var b Builder
	b.PutOwned(IDZip64, []byte{1, 2, 3, 4})
	b.PassThrough([]Block{
		{ID: 0x1234, Data: []byte("vendor")},
		{ID: IDZip64, Data: []byte("should be dropped")},
	}, IDZip64, IDNTFS, IDAES)

	blob := b.Bytes()
	blocks, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Block{
		{ID: IDZip64, Data: []byte{1, 2, 3, 4}},
		{ID: 0x1234, Data: []byte("vendor")},
	}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("blocks = %+v, want %+v", blocks, want)
	}
}

func TestParseTruncated(t *testing.T) {
	if _, err := Parse([]byte{1, 0, 10, 0, 'a'}); err == nil {
		t.Error("expected error for truncated block")
	}
}

func TestZip64RoundTrip(t *testing.T) {
	u := uint64(1 << 33)
	c := uint64(1 << 32)
	off := uint64(1 << 40)
	f := Zip64Fields{UncompressedSize: &u, CompressedSize: &c, DiskOffset: &off}
	data := BuildZip64(f)
	got, err := ParseZip64(data, true, true, true, false)
	if err != nil {
		t.Fatalf("ParseZip64: %v", err)
	}
	if *got.UncompressedSize != u || *got.CompressedSize != c || *got.DiskOffset != off {
		t.Errorf("got %+v", got)
	}
}

func TestAESRoundTrip(t *testing.T) {
	f := AESFields{Version: 2, Strength: AESStrength256, RealCompressionMethod: 8}
	data := BuildAES(f)
	got, err := ParseAES(data)
	if err != nil {
		t.Fatalf("ParseAES: %v", err)
	}
	if got != f {
		t.Errorf("got %+v, want %+v", got, f)
	}
}

func TestAESBadMagic(t *testing.T) {
	data := BuildAES(AESFields{Version: 2, Strength: AESStrength128, RealCompressionMethod: 8})
	data[2] = 'X'
	if _, err := ParseAES(data); err == nil {
		t.Error("expected error for bad AES magic")
	}
}

func TestNTFSRoundTrip(t *testing.T) {
	want := NTFSTimes{Modified: 100, Accessed: 200, Created: 300}
	data := BuildNTFS(want)
	got, ok, err := ParseNTFS(data)
	if err != nil || !ok {
		t.Fatalf("ParseNTFS: %v, ok=%v", err, ok)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestUnix1RoundTrip(t *testing.T) {
	want := Unix1Times{AccessTime: 1, ModifyTime: 2, UID: 3, GID: 4}
	data := BuildUnix1(want)
	got, err := ParseUnix1(data)
	if err != nil {
		t.Fatalf("ParseUnix1: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
