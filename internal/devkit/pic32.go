package devkit

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"uhbprog/internal/bootinfo"
)

// pic32ConfigDataAddr is the fixed physical start of the PIC32 device
// configuration word region (DEVCFG0-3), never touched by a HEX load.
const pic32ConfigDataAddr = 0x1FC02FF0

// pic32SegMask strips a MIPS KSEG0/KSEG1 virtual segment down to its
// physical address: KSEG0 (cached, +0x80000000) and KSEG1 (uncached,
// +0xA0000000) both alias the same physical memory.
const pic32SegMask = 0x1FFFFFFF

func pic32PhysFromVirt(v uint32) uint32 { return v & pic32SegMask }

type pic32Family struct{ base }

func (pic32Family) Name() string { return "PIC32" }

func (pic32Family) BuildTable(info *bootinfo.Info) ([]BlockRange, error) {
	return uniformTable(info)
}

func (pic32Family) TranslateWrite(addr uint32, data []byte) (uint32, []byte, bool, error) {
	phy := pic32PhysFromVirt(addr)
	if phy >= pic32ConfigDataAddr {
		return 0, nil, true, nil
	}
	return phy, data, false, nil
}

// pic32Stub is the four-instruction MIPS32 sequence the original tool's
// fix_bootloader left unimplemented (FIXME): load the 32-bit reset target
// into $at across two halves and jump to it, with the mandatory one-cycle
// branch-delay-slot NOP.
//
//	lui  $at, hi16(target)
//	ori  $at, $at, lo16(target)
//	jr   $at
//	nop
func pic32Stub(target uint32) ([]byte, error) {
	const atReg = 1
	// MIPS32 instruction bit diagrams are conventionally drawn MSB-first
	// but PIC32 stores each 32-bit word little-endian in memory; the
	// opcode/register/immediate fields are assembled directly into a
	// uint32 and then written out little-endian, rather than routed
	// through the generic bit-template encoder (which targets flat
	// single-container fields, not the opcode+reg+reg+imm16 shape here).
	luiWord := (0b001111 << 26) | (0 << 21) | (atReg << 16) | (target >> 16 & 0xFFFF)
	oriWord := (0b001101 << 26) | (atReg << 21) | (atReg << 16) | (target & 0xFFFF)
	jrWord := (0b000000 << 26) | (atReg << 21) | 0b001000
	nopWord := uint32(0)

	buf := make([]byte, 0, 16)
	for _, w := range []uint32{uint32(luiWord), oriWord, jrWord, nopWord} {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], w)
		buf = append(buf, tmp[:]...)
	}
	return buf, nil
}

// Boot-ROM prologue opcodes recognized as a standard entry sequence: if the
// first instruction looks like either, the jump-to-BootStart patch below is
// placed after it (displacement 0x40) rather than overwriting it.
const (
	bootRomPrologueA = 0x27BDFFFC
	bootRomPrologueB = 0x70000000
)

// FixBootloader writes the load-and-jump stub to BootStart-16 so the
// bootloader's own reset chain lands on the freshly loaded application;
// this relocation always happens. It additionally patches the boot-ROM
// entry slot with a jump_to(BootStart) stub, at displacement 0x40 if the
// slot's first instruction matches a standard prologue (preserving that
// prologue ahead of the patch) or at displacement 0x00 otherwise. That
// second patch is what actually hands control to the bootloader on reset,
// so it alone is gated on disableBootloader. This implements the MIPS32
// sequence the original tool documented but never finished.
func (pic32Family) FixBootloader(dk *Devkit, info *bootinfo.Info, disableBootloader bool) error {
	entry, err := dk.ReadPhy(0, 4)
	if err != nil {
		return errors.Wrap(err, "pic32: read application entry")
	}
	target := binary.LittleEndian.Uint32(entry)
	stub, err := pic32Stub(target)
	if err != nil {
		return err
	}
	if err := dk.WritePhy(info.BootStart-16, stub); err != nil {
		return errors.Wrap(err, "pic32: write bootloader stub")
	}

	if disableBootloader {
		logrus.Debug("pic32: bootloader disabled, leaving boot-rom vector untouched")
		return nil
	}
	disp := uint32(0x00)
	if target == bootRomPrologueA || target == bootRomPrologueB {
		disp = 0x40
	}
	bootStub, err := pic32Stub(info.BootStart)
	if err != nil {
		return err
	}
	if err := dk.WritePhy(disp, bootStub); err != nil {
		return errors.Wrap(err, "pic32: write boot-rom vector")
	}
	return nil
}
