package devkit

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"uhbprog/internal/bootinfo"
	"uhbprog/internal/template"
)

// pic24ConfigDataAddr is the fixed physical start of the PIC24/dsPIC
// configuration-word region.
const pic24ConfigDataAddr = 0x1F00008

// PIC24/dsPIC HEX files describe 24-bit-wide program memory using a 4
// bytes-per-word stream (each instruction word's top byte is followed by
// a 0x00 pad byte), while the device's erase/write commands and block
// table operate in packed, pad-free physical bytes. These three
// conversions translate between the three address units in play: the
// HEX file's byte stream (4 bytes/word), "pic24" word addresses (2
// bytes/word, what assembly-level literals like GOTO targets use), and
// packed physical byte addresses (3 bytes/word, what the device sees).
func pic24ToPhy(a uint32) uint32  { return 3 * a / 2 }
func phyToPic24(a uint32) uint32  { return 2 * a / 3 }
func hexToPhy(a uint32) uint32    { return 3 * a / 4 }

type pic24Family struct{ base }

func (pic24Family) Name() string { return "PIC24" }

// BuildTable lays the uniform grid over packed physical bytes, so the
// device's BootStart (in pic24 units) is converted before use.
func (pic24Family) BuildTable(info *bootinfo.Info) ([]BlockRange, error) {
	phyInfo := *info
	phyInfo.BootStart = pic24ToPhy(info.BootStart)
	return uniformTable(&phyInfo)
}

// TranslateWrite converts an incoming HEX-stream address to its packed
// physical address and strips the padding byte HEX interleaves into every
// fourth position of the stream.
func (pic24Family) TranslateWrite(addr uint32, data []byte) (uint32, []byte, bool, error) {
	phy := hexToPhy(addr)
	if phy == pic24ConfigDataAddr {
		return 0, nil, true, nil
	}
	out := make([]byte, 0, len(data))
	for i, b := range data {
		if (addr+uint32(i))%4 == 3 {
			continue // pad byte, not part of the packed instruction stream
		}
		out = append(out, b)
	}
	return phy, out, false, nil
}

// pic24Goto encodes a GOTO lit23 instruction targeting a packed physical
// address as two 24-bit (3-byte) words: the target's pic24 address has its
// low 16 bits in the first word and its next 7 bits in the second.
func pic24Goto(targetPhyAddr uint32) ([]byte, error) {
	k := phyToPic24(targetPhyAddr)
	w1, err := template.Encode("00000100abcdefghijklmnop", binary.LittleEndian, k&0xFFFF)
	if err != nil {
		return nil, errors.Wrap(err, "pic24: encode goto word 1")
	}
	w2, err := template.Encode("00000000000000000abcdefg", binary.LittleEndian, (k>>16)&0x7F)
	if err != nil {
		return nil, errors.Wrap(err, "pic24: encode goto word 2")
	}
	return append(w1, w2...), nil
}

// FixBootloader relocates the application's own first instruction (two
// packed-physical words, six bytes) to just below BootStart's packed
// physical address, then overwrites block 0 with a fresh GOTO to BootStart
// so the chip's actual reset vector lands in the bootloader. BootStart is
// reported in PIC24 word-address units, so every physical offset here goes
// through pic24ToPhy first. The relocation always happens; only the block-0
// overwrite is gated on disableBootloader.
func (pic24Family) FixBootloader(dk *Devkit, info *bootinfo.Info, disableBootloader bool) error {
	entry, err := dk.ReadPhy(0, 6)
	if err != nil {
		return errors.Wrap(err, "pic24: read application entry")
	}
	bootPhy := pic24ToPhy(info.BootStart)
	if err := dk.WritePhy(bootPhy-6, entry); err != nil {
		return errors.Wrap(err, "pic24: relocate original entry")
	}

	if disableBootloader {
		logrus.Debug("pic24: bootloader disabled, leaving reset vector untouched")
		return nil
	}
	stub, err := pic24Goto(bootPhy)
	if err != nil {
		return err
	}
	if err := dk.WritePhy(0, stub); err != nil {
		return errors.Wrap(err, "pic24: write goto BootStart")
	}
	return nil
}
