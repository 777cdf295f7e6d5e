package pathrecovery

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// cursor is a tiny forward-only reader over a decompressed asset's raw
// bytes, shared by the header strategy (5a) and its name-table scan so the
// signed length-prefix string convention (spec.md §4.5 and §9's design
// note) is implemented exactly once.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) seek(pos int) error {
	if pos < 0 || pos > len(c.data) {
		return fmt.Errorf("seek to %d out of bounds (length %d)", pos, len(c.data))
	}
	c.pos = pos
	return nil
}

func (c *cursor) skip(n int) error {
	if n < 0 || c.remaining() < n {
		return fmt.Errorf("skip %d bytes: only %d remaining", n, c.remaining())
	}
	c.pos += n
	return nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("read %d bytes: only %d remaining", n, c.remaining())
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) readInt32() (int32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (c *cursor) readUint32() (uint32, error) {
	v, err := c.readInt32()
	return uint32(v), err
}

var utf16LEDecoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

// readLengthPrefixedString implements the asset-header string convention:
// a signed i32 length whose sign encodes the character encoding and whose
// magnitude is the code-unit count. Positive = UTF-8 code units (bytes).
// Negative = UTF-16 code units (2 bytes each). A trailing NUL is trimmed.
func (c *cursor) readLengthPrefixedString() (string, error) {
	length, err := c.readInt32()
	if err != nil {
		return "", err
	}
	switch {
	case length == 0:
		return "", nil
	case length > 0:
		raw, err := c.readBytes(int(length))
		if err != nil {
			return "", err
		}
		return trimTrailingNUL(raw), nil
	default:
		units := int(-length)
		raw, err := c.readBytes(units * 2)
		if err != nil {
			return "", err
		}
		decoded, err := utf16LEDecoder.Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decode UTF-16 string: %w", err)
		}
		return trimTrailingNULString(string(decoded)), nil
	}
}

func trimTrailingNUL(raw []byte) string {
	if len(raw) > 0 && raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-1]
	}
	return string(raw)
}

func trimTrailingNULString(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}
