// Package extra parses and emits ZIP extra-field blocks: the
// (u16 id, u16 length, bytes[length])* blob following the fixed-size
// region of every local and central header. It generalizes the ad hoc
// zip64-extra-block construction inline in martin-sucha-zipserve's
// writer.go into a standalone codec covering ZIP64, NTFS, Unix1 and AES.
package extra

import (
	"encoding/binary"
	"fmt"
)

// Extra-field IDs, generalizing struct.go's zip64ExtraID/extTimeExtraID
// constants with the NTFS/Unix1/AES ids  requires.
const (
	IDZip64 uint16 = 0x0001
	IDNTFS  uint16 = 0x000A
	IDUnix1 uint16 = 0x000D
	IDAES   uint16 = 0x9901
)

// Block is one (id, data) record from an extra-field blob.
type Block struct {
	ID   uint16
	Data []byte
}

// Parse decodes blob into its constituent blocks. Each id's declared length
// must be fully present; a truncated trailing block is a format error.
func Parse(blob []byte) ([]Block, error) {
	var blocks []Block
	for len(blob) > 0 {
		if len(blob) < 4 {
			return nil, fmt.Errorf("extra: truncated header, %d bytes left", len(blob))
		}
		id := binary.LittleEndian.Uint16(blob[0:2])
		length := binary.LittleEndian.Uint16(blob[2:4])
		blob = blob[4:]
		if int(length) > len(blob) {
			return nil, fmt.Errorf("extra: block %#x declares length %d, only %d bytes left", id, length, len(blob))
		}
		blocks = append(blocks, Block{ID: id, Data: blob[:length:length]})
		blob = blob[length:]
	}
	return blocks, nil
}

// Find returns the first block with the given id, if present.
func Find(blocks []Block, id uint16) ([]byte, bool) {
	for _, b := range blocks {
		if b.ID == id {
			return b.Data, true
		}
	}
	return nil, false
}

// Builder accumulates extra-field blocks for serialization, enforcing a
// fixed write order: library-owned blocks are emitted first, in the order
// PutOwned received them, then any pass-through blocks in their original
// relative order with owned ids filtered out.
type Builder struct {
	owned       []Block
	passThrough []Block
}

// PutOwned appends a library-owned block (ZIP64/NTFS/AES), in emission
// order.
func (b *Builder) PutOwned(id uint16, data []byte) {
	b.owned = append(b.owned, Block{ID: id, Data: data})
}

// PassThrough copies blocks from an incoming blob verbatim, dropping any
// whose id is in ownedIDs so duplicates never appear on the wire: ids the
// library owns are always filtered from the incoming stream.
func (b *Builder) PassThrough(blocks []Block, ownedIDs ...uint16) {
	for _, block := range blocks {
		owned := false
		for _, id := range ownedIDs {
			if block.ID == id {
				owned = true
				break
			}
		}
		if !owned {
			b.passThrough = append(b.passThrough, block)
		}
	}
}

// Bytes serializes the accumulated blocks: owned blocks first, then
// pass-through blocks.
func (b *Builder) Bytes() []byte {
	var out []byte
	for _, block := range append(append([]Block{}, b.owned...), b.passThrough...) {
		var hdr [4]byte
		binary.LittleEndian.PutUint16(hdr[0:2], block.ID)
		binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(block.Data)))
		out = append(out, hdr[:]...)
		out = append(out, block.Data...)
	}
	return out
}
