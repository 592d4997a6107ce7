// Package protocol implements the UHB HID command and data frame wire
// format: fixed 64-byte reports exchanged with the bootloader over a USB
// HID endpoint.
package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FrameSize is the fixed HID report payload size used by every UHB frame.
const FrameSize = 64

// STX marks the first byte of every command frame.
const STX = 0x0F

// Command identifiers, matching the bootloader's command set.
const (
	CmdSync   = 1
	CmdInfo   = 2
	CmdBoot   = 3
	CmdReboot = 4
	CmdWrite  = 11
	CmdErase  = 21
)

// ErrProtocolMismatch is a non-fatal anomaly: the device echoed back a
// command id different from the one that was expected.
var ErrProtocolMismatch = errors.New("protocol: unexpected command in reply")

// Command is the 64-byte HID command frame: stx, cmd, addr (u32 LE),
// counter (u16 LE), zero padding to FrameSize.
type Command struct {
	Cmd     byte
	Addr    uint32
	Counter uint16
}

// Pack serializes c into a zero-padded FrameSize-byte buffer.
func (c Command) Pack() []byte {
	buf := make([]byte, FrameSize)
	buf[0] = STX
	buf[1] = c.Cmd
	binary.LittleEndian.PutUint32(buf[2:6], c.Addr)
	binary.LittleEndian.PutUint16(buf[6:8], c.Counter)
	return buf
}

// Parse decodes a command frame received from the device. It does not
// require buf to be exactly FrameSize long, only at least 8 bytes, since
// some transports may trim trailing zero padding. A bad stx byte is logged
// as an error but does not fail the parse: the decoded command is still
// returned so callers can see the command code.
func Parse(buf []byte) (Command, error) {
	if len(buf) < 8 {
		return Command{}, errors.Errorf("protocol: frame too short: %d bytes", len(buf))
	}
	if buf[0] != STX {
		logrus.WithField("stx", buf[0]).Error("protocol: bad stx byte")
	}
	return Command{
		Cmd:     buf[1],
		Addr:    binary.LittleEndian.Uint32(buf[2:6]),
		Counter: binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}

// Expect logs and reports whether got matches want, without treating a
// mismatch as fatal — callers decide how to proceed.
func Expect(want, got Command) bool {
	if got.Cmd != want.Cmd {
		logrus.WithFields(logrus.Fields{
			"want": want.Cmd,
			"got":  got.Cmd,
		}).Error("protocol: command mismatch")
		return false
	}
	return true
}

// PadData returns a FrameSize-byte data frame containing data, padded with
// 0xFF as the bootloader's flash erase state expects.
func PadData(data []byte) []byte {
	buf := make([]byte, FrameSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	copy(buf, data)
	return buf
}
