// Package session sequences one end-to-end programming run: query the
// board, build its flash model, load a HEX image into it, patch the
// bootloader chain-back, transfer the result, and reboot into the
// freshly flashed application.
package session

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"uhbprog/internal/bootinfo"
	"uhbprog/internal/devkit"
	"uhbprog/internal/hexfile"
	"uhbprog/internal/protocol"
	"uhbprog/internal/transfer"
	"uhbprog/internal/transport"
)

// devkitWriter adapts a Devkit+Family pair to hexfile.Writer, translating
// each HEX record's virtual address through the family before it lands in
// the flash model.
type devkitWriter struct {
	dk  *devkit.Devkit
	fam devkit.Family
}

func (w devkitWriter) WriteVirt(addr uint32, data []byte) error {
	phy, phyData, drop, err := w.fam.TranslateWrite(addr, data)
	if err != nil {
		return err
	}
	if drop {
		return nil
	}
	return w.dk.WritePhy(phy, phyData)
}

// Program runs INFO, then, only if hexInput is non-nil, BOOT -> SYNC ->
// family factory -> HEX load -> bootloader fixup -> transfer -> REBOOT
// against dev. printInfo logs the decoded BootInfo descriptor at Info
// level; when it is false the descriptor is not logged.
func Program(ctx context.Context, dev transport.Device, hexInput io.Reader, printInfo, disableBootloader bool) error {
	sessionID := uuid.New().String()
	log := logrus.WithField("session", sessionID)

	info, err := queryInfo(ctx, dev, log)
	if err != nil {
		return err
	}
	if printInfo {
		log.WithFields(logrus.Fields{
			"mcu_type":    info.McuType.String(),
			"mcu_id":      info.McuId,
			"erase_block": info.EraseBlock,
			"write_block": info.WriteBlock,
			"boot_rev":    info.BootRev,
			"boot_start":  info.BootStart,
			"mcu_size":    info.McuSize,
		}).Info("session: board info")
	}

	if hexInput == nil {
		return nil
	}

	if err := sendSimple(ctx, dev, protocol.CmdBoot, log, "boot"); err != nil {
		return err
	}
	if err := sendSimple(ctx, dev, protocol.CmdSync, log, "sync"); err != nil {
		return err
	}

	fam, err := devkit.Factory(info)
	if err != nil {
		return errors.Wrap(err, "session: resolve mcu family")
	}
	table, err := fam.BuildTable(info)
	if err != nil {
		return errors.Wrap(err, "session: build block table")
	}
	dk, err := devkit.New(table, uint32(info.EraseBlock))
	if err != nil {
		return errors.Wrap(err, "session: build devkit")
	}

	if err := hexfile.Load(hexInput, devkitWriter{dk: dk, fam: fam}); err != nil {
		return errors.Wrap(err, "session: load hex image")
	}

	if err := fam.FixBootloader(dk, info, disableBootloader); err != nil {
		return errors.Wrap(err, "session: fix bootloader")
	}

	if err := transfer.Run(ctx, dev, dk, fam); err != nil {
		return errors.Wrap(err, "session: transfer")
	}

	log.Info("session: transfer complete, rebooting device")
	return sendReboot(ctx, dev)
}

func queryInfo(ctx context.Context, dev transport.Device, log *logrus.Entry) (*bootinfo.Info, error) {
	cmd := protocol.Command{Cmd: protocol.CmdInfo}
	if err := dev.Write(ctx, cmd.Pack()); err != nil {
		return nil, errors.Wrap(err, "session: send info")
	}
	buf, err := dev.Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "session: read info reply")
	}
	info, err := bootinfo.Parse(buf)
	if err != nil {
		log.WithError(err).Warn("session: bootinfo parse stopped early")
	}
	return info, nil
}

func sendSimple(ctx context.Context, dev transport.Device, cmdByte byte, log *logrus.Entry, name string) error {
	cmd := protocol.Command{Cmd: cmdByte}
	if err := dev.Write(ctx, cmd.Pack()); err != nil {
		return errors.Wrapf(err, "session: send %s", name)
	}
	buf, err := dev.Read(ctx)
	if err != nil {
		return errors.Wrapf(err, "session: read %s ack", name)
	}
	got, err := protocol.Parse(buf)
	if err != nil {
		return errors.Wrapf(err, "session: parse %s ack", name)
	}
	if !protocol.Expect(cmd, got) {
		log.WithFields(logrus.Fields{"want": cmd, "got": got}).Warn("session: ack mismatch")
	}
	return nil
}

func sendReboot(ctx context.Context, dev transport.Device) error {
	cmd := protocol.Command{Cmd: protocol.CmdReboot}
	if err := dev.Write(ctx, cmd.Pack()); err != nil {
		return errors.Wrap(err, "session: send reboot")
	}
	return nil
}
