// Package devkit models a target board's Flash memory as a set of erase
// blocks, tracks which ones a HEX load has made dirty, and specializes
// per-MCU-family address translation and bootloader-preservation fixups.
package devkit

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HIDBufSize is the USB HID report payload size; EraseBlock must always be
// a multiple of it so dev_buf_rem accounting in the transfer engine never
// straddles a partial packet.
const HIDBufSize = 64

// DefaultWriteMax bounds how many bytes a single WRITE command transfers.
const DefaultWriteMax = 0x8000

// ErrBlockIndex is the RangeError of spec: an address fell outside every
// block in the table.
var ErrBlockIndex = errors.New("devkit: address out of range")

// BlockRange is one physical erase block's half-open address range.
type BlockRange struct {
	Start, End uint32
}

func (r BlockRange) contains(addr uint32) bool {
	return addr >= r.Start && addr < r.End
}

// Devkit is the Flash memory model shared by every MCU family: a table of
// erase blocks, lazily-materialized 0xFF-filled buffers, and a dirty set.
type Devkit struct {
	Table      []BlockRange
	Blocks     map[int][]byte
	Dirty      map[int]bool
	EraseBlock uint32
	WriteMax   int

	ptr int // last block written/read, for locality-accelerated lookup
}

// New builds the base model from a BlockRange table and the board's
// reported EraseBlock size.
func New(table []BlockRange, eraseBlock uint32) (*Devkit, error) {
	if eraseBlock%HIDBufSize != 0 {
		return nil, errors.Errorf("devkit: EraseBlock 0x%x is not a multiple of HID buffer size %d", eraseBlock, HIDBufSize)
	}
	return &Devkit{
		Table:      table,
		Blocks:     map[int][]byte{},
		Dirty:      map[int]bool{},
		EraseBlock: eraseBlock,
		WriteMax:   DefaultWriteMax,
	}, nil
}

// locate returns the table index whose range contains addr, using a
// locality-accelerated linear scan starting from the last block touched.
func (d *Devkit) locate(addr uint32) (int, error) {
	if len(d.Table) == 0 {
		return 0, errors.Wrapf(ErrBlockIndex, "addr=0x%x: empty block table", addr)
	}
	blk := d.ptr
	for {
		if blk < 0 || blk >= len(d.Table) {
			return 0, errors.Wrapf(ErrBlockIndex, "addr=0x%x", addr)
		}
		r := d.Table[blk]
		if addr >= r.End {
			blk++
		} else if addr < r.Start {
			blk--
		} else {
			break
		}
	}
	return blk, nil
}

func (d *Devkit) buffer(blk int) []byte {
	buf, ok := d.Blocks[blk]
	if !ok {
		size := d.Table[blk].End - d.Table[blk].Start
		buf = make([]byte, size)
		for i := range buf {
			buf[i] = 0xFF
		}
		d.Blocks[blk] = buf
	}
	return buf
}

// WritePhy writes data at a physical Flash byte address, splitting the
// write across block boundaries as needed and marking every touched block
// dirty. Addresses outside the table return ErrBlockIndex.
func (d *Devkit) WritePhy(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	blk, err := d.locate(addr)
	if err != nil {
		return err
	}
	d.ptr = blk

	r := d.Table[blk]
	buf := d.buffer(blk)
	d.Dirty[blk] = true

	writeLen := int(r.End - addr)
	if writeLen > len(data) {
		writeLen = len(data)
	}
	off := addr - r.Start
	copy(buf[off:int(off)+writeLen], data[:writeLen])

	rest := data[writeLen:]
	if len(rest) > 0 {
		logrus.WithFields(logrus.Fields{"addr": addr, "write_len": writeLen}).Debug("devkit: data trespassing block limits")
		return d.WritePhy(addr+uint32(writeLen), rest)
	}
	return nil
}

// ReadPhy reads n bytes starting at a physical Flash address. Unallocated
// blocks read as 0xFF, matching the bootloader's Flash erase state.
func (d *Devkit) ReadPhy(addr uint32, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	blk, err := d.locate(addr)
	if err != nil {
		return nil, err
	}
	d.ptr = blk

	r := d.Table[blk]
	buf := d.buffer(blk)
	readLen := int(r.End - addr)
	if readLen > n {
		readLen = n
	}
	off := addr - r.Start
	out := make([]byte, readLen)
	copy(out, buf[off:int(off)+readLen])

	if readLen < n {
		rest, err := d.ReadPhy(addr+uint32(readLen), n-readLen)
		if err != nil {
			return nil, err
		}
		out = append(out, rest...)
	}
	return out, nil
}

// BlockRun is a contiguous run of dirty block indices [Start, End).
type BlockRun struct {
	Start, End int
}

// DirtyRuns returns the maximal contiguous runs of dirty blocks, in index
// order. This is the single algorithm the transfer engine uses for every
// family, including PIC32, whose original implementation used a different
// dict-grouping trick to the same end.
func (d *Devkit) DirtyRuns() []BlockRun {
	var runs []BlockRun
	inside := false
	start := 0
	n := len(d.Table)
	for blk := 0; blk <= n; blk++ {
		dirty := blk < n && d.Dirty[blk]
		if inside {
			if !dirty {
				runs = append(runs, BlockRun{start, blk})
				inside = false
			}
		} else if dirty {
			start = blk
			inside = true
		}
	}
	return runs
}

// BlockData returns the (possibly 0xFF-filled, lazily materialized) buffer
// for a given block index.
func (d *Devkit) BlockData(blk int) []byte {
	return d.buffer(blk)
}

// BlockRange returns the physical address range of a block index.
func (d *Devkit) BlockRange(blk int) BlockRange {
	return d.Table[blk]
}

// NumBlocks returns the size of the block table.
func (d *Devkit) NumBlocks() int {
	return len(d.Table)
}
