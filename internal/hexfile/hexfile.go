// Package hexfile parses Intel HEX firmware images, streaming each data
// record to a sink as it's decoded rather than assembling an in-memory
// image first.
package hexfile

import (
	"bufio"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	recData                = 0x00
	recEOF                 = 0x01
	recExtendedLinearAddr  = 0x04
)

// ErrParse is the fatal HexParseError of spec: a malformed record,
// checksum mismatch, or unsupported record type.
var ErrParse = errors.New("hexfile: parse error")

// Writer receives each decoded data record's virtual address and payload,
// in file order. internal/session's devkitWriter (a family's
// TranslateWrite followed by devkit.Devkit.WritePhy) satisfies this.
type Writer interface {
	WriteVirt(addr uint32, data []byte) error
}

// Load reads an Intel HEX stream from r, calling sink.WriteVirt once per
// data record. Parsing stops at the first EOF record (0x01); any other
// record type is fatal. A record whose checksum doesn't sum to zero mod
// 256 is fatal. A record whose declared byte count doesn't match its
// actual data length is truncated and a warning logged, matching the
// original parser's tolerance for slightly malformed dumps.
func Load(r io.Reader, sink Writer) error {
	scanner := bufio.NewScanner(r)
	var base uint32

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] != ':' {
			return errors.Wrapf(ErrParse, "line does not start with ':': %q", line)
		}
		raw, err := hex.DecodeString(line[1:])
		if err != nil {
			return errors.Wrapf(ErrParse, "invalid hex in line %q: %v", line, err)
		}
		if len(raw) < 5 {
			return errors.Wrapf(ErrParse, "line too short: %q", line)
		}

		byteCount := int(raw[0])
		address := uint16(raw[1])<<8 | uint16(raw[2])
		recType := raw[3]
		data := raw[4 : len(raw)-1]
		checksum := raw[len(raw)-1]

		sum := byte(0)
		for _, b := range raw[:len(raw)-1] {
			sum += b
		}
		sum += checksum
		if sum != 0 {
			return errors.Wrapf(ErrParse, "checksum mismatch in line %q", line)
		}

		if len(data) != byteCount {
			logrus.WithFields(logrus.Fields{"declared": byteCount, "actual": len(data)}).Warn("hexfile: record length mismatch, truncating")
			if len(data) > byteCount {
				data = data[:byteCount]
			}
		}

		switch recType {
		case recData:
			if err := sink.WriteVirt(base+uint32(address), data); err != nil {
				return errors.Wrap(err, "hexfile: write data record")
			}
		case recEOF:
			return nil
		case recExtendedLinearAddr:
			if len(data) < 2 {
				return errors.Wrapf(ErrParse, "short extended linear address record: %q", line)
			}
			base = (uint32(data[0])<<8 | uint32(data[1])) << 16
		default:
			return errors.Wrapf(ErrParse, "unsupported record type %#x in line %q", recType, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "hexfile: read")
	}
	return nil
}
