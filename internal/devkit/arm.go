package devkit

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"uhbprog/internal/bootinfo"
	"uhbprog/internal/template"
)

// armFamily handles generic Cortex-M parts: a flat, uniform block grid and
// a Thumb-mode reset stub fixup. stm32Family embeds this and only replaces
// the block table.
type armFamily struct{ base }

func (armFamily) Name() string { return "ARM" }

func (armFamily) BuildTable(info *bootinfo.Info) ([]BlockRange, error) {
	return uniformTable(info)
}

// loadR0 returns the Thumb-2 movw/movt pair that loads a 32-bit value into
// r0, using the exact bit templates the bootloader's own host tool encodes.
func loadR0(value uint32) ([]byte, error) {
	lo, err := template.Encode("0fgh0000ijklmnop11110e100100abcd", binary.LittleEndian, value&0xFFFF)
	if err != nil {
		return nil, errors.Wrap(err, "arm: encode movw r0")
	}
	hi, err := template.Encode("0fgh0000ijklmnop11110e101100abcd", binary.LittleEndian, (value>>16)&0xFFFF)
	if err != nil {
		return nil, errors.Wrap(err, "arm: encode movt r0")
	}
	return append(lo, hi...), nil
}

// armStub is the fixed five-instruction reset stub the bootloader jumps to:
// load the application's initial stack pointer into r0, move it into sp,
// then load the application's reset handler into r0 and branch to it. Both
// values come from the application's own vector table at block 0; both
// loads reuse r0, matching the bootloader's own fixed stub exactly.
//
//	movw r0, #lo16(stackp)
//	movt r0, #hi16(stackp)
//	mov  sp, r0
//	movw r0, #lo16(resetaddr)
//	movt r0, #hi16(resetaddr)
//	bx   r0
func armStub(resetaddr, stackp uint32) ([]byte, error) {
	stackLoad, err := loadR0(stackp)
	if err != nil {
		return nil, err
	}
	movSp, err := template.Encode("0100011010000101", binary.LittleEndian) // mov sp, r0
	if err != nil {
		return nil, errors.Wrap(err, "arm: encode mov sp, r0")
	}
	resetLoad, err := loadR0(resetaddr)
	if err != nil {
		return nil, err
	}
	bxR0, err := template.Encode("0100011100000000", binary.LittleEndian) // bx r0
	if err != nil {
		return nil, errors.Wrap(err, "arm: encode bx r0")
	}

	program := append(append(append(stackLoad, movSp...), resetLoad...), bxR0...)
	if len(program) != 20 {
		return nil, errors.Errorf("arm: assembled stub is %d bytes, want 20", len(program))
	}
	return program, nil
}

// FixBootloader reads the application's vector table (stack pointer and
// reset handler) out of block 0, enforces the Thumb execution-state bit on
// the reset address, and writes a jump stub at BootStart-20 so the
// bootloader's own reset chain lands on the freshly loaded application.
// That relocation always happens; only the block-0 reset vector rewrite
// (which hands control to the stub on the device's next reset) is gated on
// disableBootloader, matching the original tool's behavior of leaving the
// relocated entry point in place even for a standalone image.
func (f armFamily) FixBootloader(dk *Devkit, info *bootinfo.Info, disableBootloader bool) error {
	vec, err := dk.ReadPhy(0, 8)
	if err != nil {
		return errors.Wrap(err, "arm: read application vector table")
	}
	stackp := binary.LittleEndian.Uint32(vec[0:4])
	resetaddr := binary.LittleEndian.Uint32(vec[4:8])
	if resetaddr&1 == 0 {
		logrus.WithField("resetaddr", resetaddr).Warn("arm: reset address missing Thumb bit, setting it")
		resetaddr |= 1
	}
	stub, err := armStub(resetaddr, stackp)
	if err != nil {
		return err
	}
	if err := dk.WritePhy(info.BootStart-20, stub); err != nil {
		return errors.Wrap(err, "arm: write bootloader stub")
	}

	if disableBootloader {
		logrus.Debug("arm: bootloader disabled, leaving application reset vector untouched")
		return nil
	}
	var newVec [4]byte
	binary.LittleEndian.PutUint32(newVec[:], info.BootStart|1)
	if err := dk.WritePhy(4, newVec[:]); err != nil {
		return errors.Wrap(err, "arm: write reset vector")
	}
	return nil
}
