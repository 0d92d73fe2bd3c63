package extra

import (
	"encoding/binary"
	"fmt"
)

// AESFields holds the WinZip AES extra (0x9901) payload:
// version (1 or 2), the 'A','E' magic, the strength byte, and the real
// underlying compression method (since the on-wire compression_method
// field is replaced by the AES sentinel when AES is active).
type AESFields struct {
	Version               uint16
	Strength              uint8
	RealCompressionMethod uint16
}

// AES strength byte values, per the WinZip AES specification.
const (
	AESStrength128 uint8 = 1
	AESStrength192 uint8 = 2
	AESStrength256 uint8 = 3
)

// ParseAES decodes an AES extra block. Any deviation from the expected
// layout or magic bytes is a format error.
func ParseAES(data []byte) (AESFields, error) {
	if len(data) != 7 {
		return AESFields{}, fmt.Errorf("extra: AES block must be 7 bytes, got %d", len(data))
	}
	version := binary.LittleEndian.Uint16(data[0:2])
	if version != 1 && version != 2 {
		return AESFields{}, fmt.Errorf("extra: AES block unsupported version %d", version)
	}
	if data[2] != 'A' || data[3] != 'E' {
		return AESFields{}, fmt.Errorf("extra: AES block bad magic %q", data[2:4])
	}
	return AESFields{
		Version:               version,
		Strength:              data[4],
		RealCompressionMethod: binary.LittleEndian.Uint16(data[5:7]),
	}, nil
}

// BuildAES serializes an AES extra block.
func BuildAES(f AESFields) []byte {
	var b [7]byte
	binary.LittleEndian.PutUint16(b[0:2], f.Version)
	b[2], b[3] = 'A', 'E'
	b[4] = f.Strength
	binary.LittleEndian.PutUint16(b[5:7], f.RealCompressionMethod)
	return b[:]
}

// AESStrengthForBits maps an AES key length in bits to its extra-field
// strength byte.
func AESStrengthForBits(bits int) (uint8, error) {
	switch bits {
	case 128:
		return AESStrength128, nil
	case 192:
		return AESStrength192, nil
	case 256:
		return AESStrength256, nil
	default:
		return 0, fmt.Errorf("extra: unsupported AES key size %d bits", bits)
	}
}

// AESBitsForStrength is the inverse of AESStrengthForBits.
func AESBitsForStrength(strength uint8) (int, error) {
	switch strength {
	case AESStrength128:
		return 128, nil
	case AESStrength192:
		return 192, nil
	case AESStrength256:
		return 256, nil
	default:
		return 0, fmt.Errorf("extra: unsupported AES strength byte %#x", strength)
	}
}
