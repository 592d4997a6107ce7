package devkit

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"uhbprog/internal/bootinfo"
	"uhbprog/internal/template"
)

// pic18ConfigDataAddr is the fixed start of the PIC18 configuration-word
// region; writes at or above it are silently dropped (config words are
// never part of application flash and must never be erased/rewritten by
// HEX load).
const pic18ConfigDataAddr = 0x300000

type pic18Family struct{ base }

func (pic18Family) Name() string { return "PIC18" }

func (pic18Family) BuildTable(info *bootinfo.Info) ([]BlockRange, error) {
	return uniformTable(info)
}

func (pic18Family) TranslateWrite(addr uint32, data []byte) (uint32, []byte, bool, error) {
	if addr >= pic18ConfigDataAddr {
		return 0, nil, true, nil
	}
	return addr, data, false, nil
}

// pic18Goto encodes a two-word GOTO k instruction: word addressing, so the
// byte target is halved before being split across the two words.
func pic18Goto(targetByteAddr uint32) ([]byte, error) {
	k := targetByteAddr >> 1
	w1, err := template.Encode("11101111abcdefgh", binary.LittleEndian, k&0xFF)
	if err != nil {
		return nil, errors.Wrap(err, "pic18: encode goto word 1")
	}
	w2, err := template.Encode("1111abcdefghijkl", binary.LittleEndian, (k>>8)&0xFFF)
	if err != nil {
		return nil, errors.Wrap(err, "pic18: encode goto word 2")
	}
	return append(w1, w2...), nil
}

// FixBootloader relocates the application's own first instruction (its
// reset GOTO) to BootStart-4, the reserved two-word slot the manufacturer
// bootloader chains through after an ERASE/WRITE sequence completes, then
// overwrites block 0 with a fresh GOTO BootStart so the chip's actual reset
// vector lands in the bootloader. The relocation always happens; only the
// block-0 overwrite (which hands control to the bootloader on next reset)
// is gated on disableBootloader, so a standalone image keeps running its
// own entry point directly.
func (pic18Family) FixBootloader(dk *Devkit, info *bootinfo.Info, disableBootloader bool) error {
	entry, err := dk.ReadPhy(0, 4)
	if err != nil {
		return errors.Wrap(err, "pic18: read application entry")
	}
	if err := dk.WritePhy(info.BootStart-4, entry); err != nil {
		return errors.Wrap(err, "pic18: relocate original entry")
	}

	if disableBootloader {
		logrus.Debug("pic18: bootloader disabled, leaving reset vector untouched")
		return nil
	}
	stub, err := pic18Goto(info.BootStart)
	if err != nil {
		return err
	}
	if err := dk.WritePhy(0, stub); err != nil {
		return errors.Wrap(err, "pic18: write goto BootStart")
	}
	return nil
}
