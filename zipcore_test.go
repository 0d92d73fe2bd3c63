package zipcore

import (
	"bytes"
	"compress/flate"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlyn/zipcore/internal/binio"
	"github.com/arlyn/zipcore/internal/zipfmt"
)

func writeEntry(t *testing.T, a *Archive, name string, method uint16, content []byte) {
	t.Helper()
	ew, err := a.CreateEntry(&zipfmt.Entry{Name: name, Method: method}, WriteOptions{})
	require.NoError(t, err)
	_, err = ew.Write(content)
	require.NoError(t, err)
	require.NoError(t, ew.Close())
}

func readEntry(t *testing.T, a *Archive) []byte {
	t.Helper()
	r, err := a.OpenCurrentEntry(ReadOptions{})
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return got
}

func TestArchiveWriteReadRoundTrip(t *testing.T) {
	stream := binio.NewMemStream(nil)

	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	writeEntry(t, a, "stored.txt", zipfmt.Store, []byte("stored content"))
	writeEntry(t, a, "deflated.txt", zipfmt.Deflate, []byte("deflated content, deflated content, deflated content"))
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	assert.Equal(t, 2, ra.EntryCount())

	require.True(t, ra.FirstEntry())
	e, _, ok := ra.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, "stored.txt", e.Name)
	assert.Equal(t, []byte("stored content"), readEntry(t, ra))

	require.True(t, ra.NextEntry())
	e2, _, ok := ra.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, "deflated.txt", e2.Name)
	assert.Equal(t, []byte("deflated content, deflated content, deflated content"), readEntry(t, ra))

	assert.False(t, ra.NextEntry())
}

func TestArchiveAppendToExisting(t *testing.T) {
	stream := binio.NewMemStream(nil)

	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	writeEntry(t, a, "first.txt", zipfmt.Store, []byte("first"))
	require.NoError(t, a.Close())

	appended := binio.NewMemStream(stream.Bytes())
	aa, err := Open(appended, ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, 1, aa.EntryCount())
	writeEntry(t, aa, "second.txt", zipfmt.Store, []byte("second"))
	require.NoError(t, aa.Close())

	final := binio.NewMemStream(appended.Bytes())
	ra, err := Open(final, ModeRead)
	require.NoError(t, err)
	assert.Equal(t, 2, ra.EntryCount())

	require.True(t, ra.Locate("first.txt", false))
	assert.Equal(t, []byte("first"), readEntry(t, ra))
	require.True(t, ra.Locate("second.txt", false))
	assert.Equal(t, []byte("second"), readEntry(t, ra))
}

func TestArchiveAppendWithNoExistingArchive(t *testing.T) {
	stream := binio.NewMemStream(nil)
	a, err := Open(stream, ModeAppend)
	require.NoError(t, err)
	writeEntry(t, a, "only.txt", zipfmt.Store, []byte("only"))
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	assert.Equal(t, 1, ra.EntryCount())
}

func TestArchiveEmptyHasMinimalEOCD(t *testing.T) {
	stream := binio.NewMemStream(nil)
	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Equal(t, int64(zipfmt.EOCDLen), int64(len(stream.Bytes())))

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	assert.Equal(t, 0, ra.EntryCount())
	assert.False(t, ra.FirstEntry())
}

func TestComparePaths(t *testing.T) {
	assert.Equal(t, 0, ComparePaths("a/b/c", "a\\b\\c", false))
	assert.NotEqual(t, 0, ComparePaths("A/B", "a/b", false))
	assert.Equal(t, 0, ComparePaths("A/B", "a/b", true))
}

func TestArchiveZipCryptoRoundTrip(t *testing.T) {
	stream := binio.NewMemStream(nil)
	password := []byte("correct horse")
	content := []byte("zipcrypto payload")

	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	writeEntry := func(a *Archive, name string, content []byte) {
		ew, err := a.CreateEntry(&zipfmt.Entry{Name: name, Method: zipfmt.Store}, WriteOptions{Password: password})
		require.NoError(t, err)
		_, err = ew.Write(content)
		require.NoError(t, err)
		require.NoError(t, ew.Close())
	}
	writeEntry(a, "locked.txt", content)
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	require.True(t, ra.FirstEntry())
	e, _, ok := ra.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, zipfmt.EncryptionZipCrypto, e.Encryption)
	assert.NotZero(t, e.Flags&zipfmt.FlagEncrypted)

	r, err := ra.OpenCurrentEntry(ReadOptions{Password: password})
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, content, got)
}

func TestArchiveAES256RoundTrip(t *testing.T) {
	stream := binio.NewMemStream(nil)
	password := []byte("hunter2")
	content := []byte("secret payload, secret payload, secret payload")

	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	ew, err := a.CreateEntry(&zipfmt.Entry{
		Name:              "secret.txt",
		Method:            zipfmt.Deflate,
		Encryption:        zipfmt.EncryptionAES,
		AESEncryptionMode: zipfmt.AES256,
	}, WriteOptions{Password: password})
	require.NoError(t, err)
	_, err = ew.Write(content)
	require.NoError(t, err)
	require.NoError(t, ew.Close())
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	require.True(t, ra.FirstEntry())

	r, err := ra.OpenCurrentEntry(ReadOptions{Password: password})
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, content, got)
}

func TestArchiveAESDefaultsToAES256(t *testing.T) {
	stream := binio.NewMemStream(nil)
	password := []byte("hunter2")
	content := []byte("default strength payload")

	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	ew, err := a.CreateEntry(&zipfmt.Entry{
		Name:       "secret.txt",
		Method:     zipfmt.Deflate,
		Encryption: zipfmt.EncryptionAES,
	}, WriteOptions{Password: password})
	require.NoError(t, err)
	_, err = ew.Write(content)
	require.NoError(t, err)
	require.NoError(t, ew.Close())
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	require.True(t, ra.FirstEntry())
	e, _, ok := ra.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, zipfmt.AES256, e.AESEncryptionMode)

	r, err := ra.OpenCurrentEntry(ReadOptions{Password: password})
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, content, got)
}

func TestArchiveCreateEntryRaw(t *testing.T) {
	content := []byte("raw mode content, raw mode content, raw mode content")

	var deflated bytes.Buffer
	fw, err := flate.NewWriter(&deflated, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	stream := binio.NewMemStream(nil)
	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	ew, err := a.CreateEntry(&zipfmt.Entry{
		Name:             "precompressed.bin",
		Method:           zipfmt.Deflate,
		CRC32:            crc32.ChecksumIEEE(content),
		UncompressedSize: uint64(len(content)),
	}, WriteOptions{Raw: true})
	require.NoError(t, err)
	_, err = ew.Write(deflated.Bytes())
	require.NoError(t, err)
	require.NoError(t, ew.Close())
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	require.True(t, ra.FirstEntry())
	e, _, ok := ra.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, zipfmt.Deflate, e.Method)
	assert.Equal(t, crc32.ChecksumIEEE(content), e.CRC32)
	assert.Equal(t, content, readEntry(t, ra))
}

func TestArchiveForcedZip64Entry(t *testing.T) {
	stream := binio.NewMemStream(nil)
	content := []byte("forced zip64 content")

	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	ew, err := a.CreateEntry(&zipfmt.Entry{
		Name:        "big.bin",
		Method:      zipfmt.Store,
		Zip64Policy: zipfmt.Zip64Force,
	}, WriteOptions{})
	require.NoError(t, err)
	_, err = ew.Write(content)
	require.NoError(t, err)
	require.NoError(t, ew.Close())
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)
	require.True(t, ra.FirstEntry())
	e, _, ok := ra.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, "big.bin", e.Name)
	assert.Equal(t, content, readEntry(t, ra))
}

func TestArchiveOffsetShiftRepair(t *testing.T) {
	stream := binio.NewMemStream(nil)
	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	writeEntry(t, a, "one.txt", zipfmt.Store, []byte("one"))
	writeEntry(t, a, "two.txt", zipfmt.Store, []byte("two"))
	require.NoError(t, a.Close())

	junk := make([]byte, 1024)
	shifted := append(append([]byte{}, junk...), stream.Bytes()...)

	ra, err := Open(binio.NewMemStream(shifted), ModeRead)
	require.NoError(t, err)
	assert.Equal(t, 2, ra.EntryCount())

	require.True(t, ra.Locate("two.txt", false))
	assert.Equal(t, []byte("two"), readEntry(t, ra))
}

func TestLocateCurrentEntryShortCircuit(t *testing.T) {
	stream := binio.NewMemStream(nil)
	a, err := Open(stream, ModeWrite)
	require.NoError(t, err)
	writeEntry(t, a, "dir/one.txt", zipfmt.Store, []byte("one"))
	writeEntry(t, a, "dir/two.txt", zipfmt.Store, []byte("two"))
	require.NoError(t, a.Close())

	stream.Seek(0, io.SeekStart)
	ra, err := Open(stream, ModeRead)
	require.NoError(t, err)

	require.True(t, ra.Locate("dir/two.txt", false))
	require.True(t, ra.Locate("dir\\two.txt", false))
	e, _, ok := ra.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, "dir/two.txt", e.Name)

	assert.False(t, ra.Locate("missing.txt", false))
}
