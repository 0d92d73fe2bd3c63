package extra

import (
	"encoding/binary"
	"fmt"
)

// NTFSTimes holds the three NTFS 100ns-tick timestamps carried by an NTFS
// (0x000A) extra sub-record id=0x01.
type NTFSTimes struct {
	Modified uint64
	Accessed uint64
	Created  uint64
}

// ParseNTFS decodes an NTFS extra block: a 4-byte reserved prefix followed
// by (u16 attr_id, u16 attr_size) sub-records. Only sub-record id=0x01,
// size=24 (three uint64 ticks) is recognized; others are skipped.
func ParseNTFS(data []byte) (NTFSTimes, bool, error) {
	if len(data) < 4 {
		return NTFSTimes{}, false, fmt.Errorf("extra: NTFS block too short")
	}
	data = data[4:] // reserved
	for len(data) >= 4 {
		attrID := binary.LittleEndian.Uint16(data[0:2])
		attrSize := binary.LittleEndian.Uint16(data[2:4])
		data = data[4:]
		if int(attrSize) > len(data) {
			return NTFSTimes{}, false, fmt.Errorf("extra: NTFS sub-record %#x truncated", attrID)
		}
		sub := data[:attrSize]
		data = data[attrSize:]
		if attrID == 0x01 && attrSize == 24 {
			return NTFSTimes{
				Modified: binary.LittleEndian.Uint64(sub[0:8]),
				Accessed: binary.LittleEndian.Uint64(sub[8:16]),
				Created:  binary.LittleEndian.Uint64(sub[16:24]),
			}, true, nil
		}
	}
	return NTFSTimes{}, false, nil
}

// BuildNTFS serializes an NTFS extra block carrying only the id=0x01
// timestamp sub-record.
func BuildNTFS(t NTFSTimes) []byte {
	// 4-byte reserved prefix + (u16 id, u16 size) + 3x uint64 ticks.
	out := make([]byte, 4+4+24)
	binary.LittleEndian.PutUint16(out[4:6], 0x01)
	binary.LittleEndian.PutUint16(out[6:8], 24)
	binary.LittleEndian.PutUint64(out[8:16], t.Modified)
	binary.LittleEndian.PutUint64(out[16:24], t.Accessed)
	binary.LittleEndian.PutUint64(out[24:32], t.Created)
	return out
}

// Unix1Times holds the access/modify times and uid/gid carried by a
// UNIX1 (0x000D) extra block.
type Unix1Times struct {
	AccessTime uint32
	ModifyTime uint32
	UID        uint16
	GID        uint16
}

// ParseUnix1 decodes a UNIX1 extra block: 32-bit atime, 32-bit mtime,
// u16 uid, u16 gid, then trailing variable bytes which are ignored.
func ParseUnix1(data []byte) (Unix1Times, error) {
	if len(data) < 12 {
		return Unix1Times{}, fmt.Errorf("extra: UNIX1 block too short")
	}
	return Unix1Times{
		AccessTime: binary.LittleEndian.Uint32(data[0:4]),
		ModifyTime: binary.LittleEndian.Uint32(data[4:8]),
		UID:        binary.LittleEndian.Uint16(data[8:10]),
		GID:        binary.LittleEndian.Uint16(data[10:12]),
	}, nil
}

// BuildUnix1 serializes a UNIX1 extra block with no trailing variable data.
func BuildUnix1(t Unix1Times) []byte {
	var b [12]byte
	binary.LittleEndian.PutUint32(b[0:4], t.AccessTime)
	binary.LittleEndian.PutUint32(b[4:8], t.ModifyTime)
	binary.LittleEndian.PutUint16(b[8:10], t.UID)
	binary.LittleEndian.PutUint16(b[10:12], t.GID)
	return b[:]
}
