// Package transfer drives the ERASE+WRITE command sequence that moves a
// Devkit's dirty blocks onto the device, coalescing ACKs against the
// device's fixed-size write ring buffer.
package transfer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"uhbprog/internal/devkit"
	"uhbprog/internal/protocol"
	"uhbprog/internal/transport"
)

// Run issues one ERASE followed by one or more WRITE commands for every
// contiguous run of dirty blocks in dk, in block order. Within a WRITE
// command's data phase, the device's ring buffer is modeled as dev_buf_rem
// bytes remaining before the device flushes and ACKs; an ACK is read every
// time the buffer fills, and once more at the end of the command if it
// didn't end exactly full.
func Run(ctx context.Context, dev transport.Device, dk *devkit.Devkit, fam devkit.Family) error {
	runs := dk.DirtyRuns()
	logrus.WithField("runs", len(runs)).Debug("transfer: starting")

	for _, run := range runs {
		if err := eraseRun(ctx, dev, dk, fam, run); err != nil {
			return err
		}
		if err := writeRun(ctx, dev, dk, fam, run); err != nil {
			return err
		}
	}
	return nil
}

func eraseRun(ctx context.Context, dev transport.Device, dk *devkit.Devkit, fam devkit.Family, run devkit.BlockRun) error {
	addr := fam.EraseAddr(dk, run.End-1)
	counter := uint16(run.End - run.Start)
	cmd := protocol.Command{Cmd: protocol.CmdErase, Addr: addr, Counter: counter}
	if err := sendCommand(ctx, dev, cmd); err != nil {
		return errors.Wrap(err, "transfer: send erase")
	}
	if _, err := readAck(ctx, dev, cmd); err != nil {
		return errors.Wrap(err, "transfer: erase ack")
	}
	return nil
}

// runBytes concatenates every block's data in a dirty run into one
// physically contiguous slice, in write order.
func runBytes(dk *devkit.Devkit, run devkit.BlockRun) []byte {
	var out []byte
	for blk := run.Start; blk < run.End; blk++ {
		out = append(out, dk.BlockData(blk)...)
	}
	return out
}

func writeRun(ctx context.Context, dev transport.Device, dk *devkit.Devkit, fam devkit.Family, run devkit.BlockRun) error {
	data := runBytes(dk, run)
	writeMax := dk.WriteMax
	if writeMax <= 0 {
		writeMax = devkit.DefaultWriteMax
	}

	off := 0
	for off < len(data) {
		n := writeMax
		if off+n > len(data) {
			n = len(data) - off
		}
		chunk := data[off : off+n]
		addr := fam.WriteAddr(dk, run.Start, uint32(off))
		if err := writeChunk(ctx, dev, dk, addr, chunk); err != nil {
			return err
		}
		off += n
	}
	return nil
}

func writeChunk(ctx context.Context, dev transport.Device, dk *devkit.Devkit, addr uint32, chunk []byte) error {
	cmd := protocol.Command{Cmd: protocol.CmdWrite, Addr: addr, Counter: uint16(len(chunk))}
	if err := sendCommand(ctx, dev, cmd); err != nil {
		return errors.Wrap(err, "transfer: send write")
	}

	devBufRem := int(dk.EraseBlock)
	ackedLast := false

	for pos := 0; pos < len(chunk); pos += protocol.FrameSize {
		end := pos + protocol.FrameSize
		if end > len(chunk) {
			end = len(chunk)
		}
		packet := protocol.PadData(chunk[pos:end])
		if err := dev.Write(ctx, packet); err != nil {
			return errors.Wrap(err, "transfer: write data packet")
		}

		devBufRem -= protocol.FrameSize
		ackedLast = false
		if devBufRem <= 0 {
			if _, err := readAck(ctx, dev, cmd); err != nil {
				return errors.Wrap(err, "transfer: buffer-full ack")
			}
			devBufRem = int(dk.EraseBlock)
			ackedLast = true
		}
	}

	if !ackedLast {
		if _, err := readAck(ctx, dev, cmd); err != nil {
			return errors.Wrap(err, "transfer: end-of-write ack")
		}
	}
	return nil
}

func sendCommand(ctx context.Context, dev transport.Device, cmd protocol.Command) error {
	return dev.Write(ctx, cmd.Pack())
}

func readAck(ctx context.Context, dev transport.Device, want protocol.Command) (protocol.Command, error) {
	buf, err := dev.Read(ctx)
	if err != nil {
		return protocol.Command{}, err
	}
	got, err := protocol.Parse(buf)
	if err != nil {
		return protocol.Command{}, err
	}
	if !protocol.Expect(want, got) {
		logrus.WithFields(logrus.Fields{"want": want, "got": got}).Warn("transfer: ack mismatch")
	}
	return got, nil
}
