package devkit

import (
	"uhbprog/internal/bootinfo"
)

// stm32Family reuses armFamily's Thumb reset-stub fixup wholesale (STM32
// parts are Cortex-M under the hood) but overrides the block table: STM32's
// sector layout is a fixed, non-uniform schedule, not a uniform grid keyed
// off EraseBlock. It also overrides TranslateWrite to remove the Flash base
// address that STM32 images are linked against.
type stm32Family struct {
	armFamily
}

func (stm32Family) Name() string { return "STM32" }

// stm32FlashMemOffset is the address at which STM32 Flash appears in the
// CPU's address space.
const stm32FlashMemOffset = 0x08000000

// TranslateWrite subtracts stm32FlashMemOffset. An address below the offset
// wraps past the end of the block table and so fails with ErrBlockIndex.
func (stm32Family) TranslateWrite(addr uint32, data []byte) (uint32, []byte, bool, error) {
	return addr - stm32FlashMemOffset, data, false, nil
}

// stm32SectorSizes is the fixed sector schedule shared by the STM32F1/F2/F4
// and L1 lines this tool targets: four 16KiB sectors, one 64KiB sector, and
// six 128KiB sectors.
var stm32SectorSizes = []uint32{
	16 * 1024, 16 * 1024, 16 * 1024, 16 * 1024,
	64 * 1024,
	128 * 1024, 128 * 1024, 128 * 1024, 128 * 1024, 128 * 1024, 128 * 1024,
}

func (stm32Family) BuildTable(info *bootinfo.Info) ([]BlockRange, error) {
	table := make([]BlockRange, 0, len(stm32SectorSizes))
	addr := uint32(0)
	for _, size := range stm32SectorSizes {
		table = append(table, BlockRange{Start: addr, End: addr + size})
		addr += size
	}
	return table, nil
}
