package devkit

import (
	"github.com/pkg/errors"

	"uhbprog/internal/bootinfo"
)

// ErrUnsupportedMcu is returned by Factory when no family handles the
// board's reported McuType.
var ErrUnsupportedMcu = errors.New("devkit: unsupported MCU type")

// Family captures everything that varies between MCU families: how the
// block table is laid out, how virtual addresses map to physical ones,
// what command-visible addresses look like, and how the bootloader
// preservation fixup works.
type Family interface {
	Name() string

	// BuildTable constructs the block table from the device's BootInfo.
	BuildTable(info *bootinfo.Info) ([]BlockRange, error)

	// TranslateWrite maps a virtual (program) address and its HEX payload
	// to a physical write. drop=true means the write must be silently
	// discarded (e.g. a configuration-word region).
	TranslateWrite(addr uint32, data []byte) (phyAddr uint32, phyData []byte, drop bool, err error)

	// WriteAddr/EraseAddr return the address supplied to the device's
	// WRITE/ERASE commands for block blk, byte offset off.
	WriteAddr(dk *Devkit, blk int, off uint32) uint32
	EraseAddr(dk *Devkit, blk int) uint32

	// FixBootloader patches the loaded image so the bootloader keeps
	// chaining to it correctly (or, if disableBootloader, so the
	// application runs standalone).
	FixBootloader(dk *Devkit, info *bootinfo.Info, disableBootloader bool) error
}

// base supplies the defaults every family starts from: flat address space,
// identity write-address mapping, no bootloader fixup. It has no
// BuildTable; each family supplies its own, most of them by calling
// uniformTable. Concrete families embed base and override only what differs.
type base struct{}

func (base) TranslateWrite(addr uint32, data []byte) (uint32, []byte, bool, error) {
	return addr, data, false, nil
}

func (base) WriteAddr(dk *Devkit, blk int, off uint32) uint32 {
	return dk.Table[blk].Start + off
}

func (b base) EraseAddr(dk *Devkit, blk int) uint32 {
	return b.WriteAddr(dk, blk, 0)
}

func (base) FixBootloader(dk *Devkit, info *bootinfo.Info, disableBootloader bool) error {
	return nil
}

// uniformTable builds the default block table: a flat grid [0, BootStart)
// stepped by EraseBlock.
func uniformTable(info *bootinfo.Info) ([]BlockRange, error) {
	if info.EraseBlock == 0 {
		return nil, errors.New("devkit: EraseBlock is zero")
	}
	if info.BootStart%uint32(info.EraseBlock) != 0 {
		return nil, errors.Errorf("devkit: BootStart 0x%x is not a multiple of EraseBlock 0x%x", info.BootStart, info.EraseBlock)
	}
	n := info.BootStart / uint32(info.EraseBlock)
	table := make([]BlockRange, n)
	for i := uint32(0); i < n; i++ {
		table[i] = BlockRange{
			Start: i * uint32(info.EraseBlock),
			End:   (i + 1) * uint32(info.EraseBlock),
		}
	}
	return table, nil
}

// Factory maps a decoded BootInfo to the Family that handles its McuType.
// The registry is a compile-time map, not a reflective scan, per the
// re-architecture guidance for the original process-wide factory.
func Factory(info *bootinfo.Info) (Family, error) {
	fam, ok := registry[info.McuType]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedMcu, "McuType=%v", info.McuType)
	}
	return fam, nil
}

var registry = map[bootinfo.McuType]Family{
	bootinfo.McuARM:          &armFamily{},
	bootinfo.McuStellarisM3:  &armFamily{},
	bootinfo.McuStellarisM4:  &armFamily{},
	bootinfo.McuStellaris:    &armFamily{},
	bootinfo.McuSTM32L1XX:    &stm32Family{},
	bootinfo.McuSTM32F1XX:    &stm32Family{},
	bootinfo.McuSTM32F2XX:    &stm32Family{},
	bootinfo.McuSTM32F4XX:    &stm32Family{},
	bootinfo.McuPIC18:        &pic18Family{},
	bootinfo.McuPIC18FJ:      &pic18Family{},
	bootinfo.McuPIC24:        &pic24Family{},
	bootinfo.McuDSPIC:        &pic24Family{},
	bootinfo.McuPIC32:        &pic32Family{},
	bootinfo.McuPIC32MZ:      &pic32mzFamily{pic32Family{}},
}
