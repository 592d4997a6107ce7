// Package template encodes fixed-width MCU instructions from a bit-level
// template string, the same trick the UHB host tool uses to synthesize
// GOTO/branch opcodes for the MCU family it is about to patch.
package template

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrInvalidTemplate is returned when a template string is empty, has a
// length that doesn't correspond to a whole number of bytes, or contains a
// character outside '0', '1', and lowercase letters.
var ErrInvalidTemplate = errors.New("template: invalid template string")

// ErrFieldRequired is returned when a template references letter positions
// but no field value was supplied.
var ErrFieldRequired = errors.New("template: field value required")

const validChars = "01abcdefghijklmnopqrstuvwxyz"

// Encode renders tmpl into 1, 2, 3, or 4 bytes. Each character in tmpl is
// either a literal bit ('0'/'1') or a letter marking one bit of a single
// field: 'a' is always the field's most significant bit, and the highest
// letter used anywhere in tmpl is its least significant bit, regardless of
// the order letters first appear in — so a template may use any subset of
// letters (skipping some) and every occurrence of a given letter still
// picks out the same bit of field. field is optional when tmpl has no
// letters at all.
//
// endian controls the byte order used to pack the assembled bits. 24-bit
// templates are packed into a 4-byte container in that byte order and the
// unused padding byte is dropped: the last byte for little-endian, the
// first for big-endian.
func Encode(tmpl string, endian binary.ByteOrder, field ...uint32) ([]byte, error) {
	n := len(tmpl)
	if n == 0 || n%8 != 0 || n > 32 {
		return nil, errors.Wrapf(ErrInvalidTemplate, "length %d", n)
	}

	var maxLetter byte
	hasLetter := false
	for i := 0; i < n; i++ {
		c := tmpl[i]
		if !isValidChar(c) {
			return nil, errors.Wrapf(ErrInvalidTemplate, "character %q", c)
		}
		if c != '0' && c != '1' {
			hasLetter = true
			if c > maxLetter {
				maxLetter = c
			}
		}
	}
	if hasLetter && len(field) == 0 {
		return nil, errors.Wrap(ErrFieldRequired, "template references a field but none was supplied")
	}
	var value uint32
	if len(field) > 0 {
		value = field[0]
	}
	width := int(maxLetter-'a') + 1

	bits := make([]byte, n)
	for i := 0; i < n; i++ {
		c := tmpl[i]
		switch c {
		case '0':
			bits[i] = '0'
		case '1':
			bits[i] = '1'
		default:
			shift := width - 1 - int(c-'a')
			bits[i] = '0' + byte((value>>uint(shift))&1)
		}
	}

	var u uint32
	for i := 0; i < n; i++ {
		u <<= 1
		if bits[i] == '1' {
			u |= 1
		}
	}

	buf := make([]byte, 4)
	endian.PutUint32(buf, u)

	switch n {
	case 8:
		return []byte{byte(u)}, nil
	case 16:
		out := make([]byte, 2)
		endian.PutUint16(out, uint16(u))
		return out, nil
	case 24:
		// u fits in the low 24 bits of a 4-byte container; drop the
		// unused padding byte, which sits at the high-address end in
		// little-endian and the low-address end in big-endian.
		if endian == binary.BigEndian {
			return buf[1:4], nil
		}
		return buf[:3], nil
	case 32:
		return buf, nil
	default:
		return nil, errors.Wrapf(ErrInvalidTemplate, "length %d", n)
	}
}

func isValidChar(c byte) bool {
	for i := 0; i < len(validChars); i++ {
		if validChars[i] == c {
			return true
		}
	}
	return false
}
