package entrystream

import (
	"hash/crc32"
	"io"
)

// crcObserver is the outermost write-path layer: it forwards bytes
// unchanged to the inner writer while accumulating a CRC32 and a running
// byte count, generalizing writer.go's inline crc32.NewIEEE() accumulation
// in makeDataDescriptor into a reusable layer shared with the read path.
type crcObserver struct {
	w     io.Writer
	crc   uint32
	total int64
}

func newCRCObserverWriter(w io.Writer) *crcObserver {
	return &crcObserver{w: w}
}

func (c *crcObserver) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p[:n])
	c.total += int64(n)
	return n, err
}

// crcObserverReader is the read-path mirror of crcObserver: it forwards
// reads from the inner reader while accumulating a CRC32 of the plaintext.
type crcObserverReader struct {
	r     io.Reader
	crc   uint32
	total int64
}

func newCRCObserverReader(r io.Reader) *crcObserverReader {
	return &crcObserverReader{r: r}
}

func (c *crcObserverReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.crc = crc32.Update(c.crc, crc32.IEEETable, p[:n])
		c.total += int64(n)
	}
	return n, err
}
