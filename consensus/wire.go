package consensus

import (
	"encoding/binary"
	"fmt"
)

// cursor is a forward-only reader over a canonical serialization buffer.
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b, pos: 0}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("parse: truncated read of %d bytes", n)
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64LE() (uint64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) readHash32() ([32]byte, error) {
	var out [32]byte
	b, err := c.readExact(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (c *cursor) readCompactSize() (uint64, error) {
	n, used, err := decodeCompactSize(c.b[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += used
	return n, nil
}

func (c *cursor) readLengthPrefixed() ([]byte, error) {
	n, err := c.readCompactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.remaining()) {
		return nil, fmt.Errorf("parse: length-prefixed field too long")
	}
	b, err := c.readExact(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// appendU32LE, appendU64LE, appendHash32, appendLengthPrefixed build the
// canonical little-endian, length-prefixed encoding used for hashing and
// storage alike.

func appendU16LE(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendU32LE(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendU64LE(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendHash32(dst []byte, h [32]byte) []byte {
	return append(dst, h[:]...)
}

func appendLengthPrefixed(dst []byte, b []byte) []byte {
	dst = appendCompactSize(dst, uint64(len(b)))
	return append(dst, b...)
}

// decodeCompactSize and appendCompactSize implement the same variable-width
// integer encoding the teacher's wire format uses: values below 0xfd encode
// as a single byte; 0xfd/0xfe/0xff introduce a 2/4/8-byte little-endian
// payload. Encodings are canonical — a decoder rejects any value that could
// have been represented with a shorter tag.
func appendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return appendU16LE(dst, uint16(n))
	case n <= 0xffff_ffff:
		dst = append(dst, 0xfe)
		return appendU32LE(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return appendU64LE(dst, n)
	}
}

func decodeCompactSize(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("parse: truncated compact-size tag")
	}
	tag := b[0]
	switch {
	case tag < 0xfd:
		return uint64(tag), 1, nil
	case tag == 0xfd:
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("parse: truncated compact-size (0xfd)")
		}
		v := binary.LittleEndian.Uint16(b[1:3])
		if v < 0xfd {
			return 0, 0, fmt.Errorf("parse: non-minimal compact-size (0xfd)")
		}
		return uint64(v), 3, nil
	case tag == 0xfe:
		if len(b) < 5 {
			return 0, 0, fmt.Errorf("parse: truncated compact-size (0xfe)")
		}
		v := binary.LittleEndian.Uint32(b[1:5])
		if v <= 0xffff {
			return 0, 0, fmt.Errorf("parse: non-minimal compact-size (0xfe)")
		}
		return uint64(v), 5, nil
	case tag == 0xff:
		if len(b) < 9 {
			return 0, 0, fmt.Errorf("parse: truncated compact-size (0xff)")
		}
		v := binary.LittleEndian.Uint64(b[1:9])
		if v <= 0xffff_ffff {
			return 0, 0, fmt.Errorf("parse: non-minimal compact-size (0xff)")
		}
		return v, 9, nil
	default:
		return 0, 0, fmt.Errorf("parse: invalid compact-size tag")
	}
}
