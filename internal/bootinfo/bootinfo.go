// Package bootinfo decodes the UHB "INFO" reply: a variable-layout,
// record-based descriptor of the attached MCU's flash geometry and
// bootloader revision.
package bootinfo

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// McuType enumerates the MCU families the bootloader descriptor can name.
type McuType int

const (
	McuPIC16       McuType = 1
	McuPIC18       McuType = 2
	McuPIC18FJ     McuType = 3
	McuPIC24       McuType = 4
	McuDSPIC       McuType = 10 // also reported as DSPIC33 by newer bootloader firmware
	McuPIC32       McuType = 20
	McuARM         McuType = 30
	McuStellarisM3 McuType = 31
	McuStellarisM4 McuType = 32
	McuStellaris   McuType = 33
	McuSTM32L1XX   McuType = 34
	McuSTM32F1XX   McuType = 35
	McuSTM32F2XX   McuType = 36
	McuSTM32F4XX   McuType = 37

	// McuPIC32MZ has no numeric code in the original bootloader's enum
	// table (the tool predates the PIC32MZ line). It is a Go-only
	// constant so internal/devkit can name a PIC32MZ family explicitly.
	// Parse never produces it, and nothing in this module derives it from
	// McuSize or any other field: a board reporting McuPIC32's wire value
	// resolves to the plain PIC32 family.
	McuPIC32MZ McuType = 1020
)

var mcuTypeNames = map[McuType]string{
	McuPIC16: "PIC16", McuPIC18: "PIC18", McuPIC18FJ: "PIC18FJ",
	McuPIC24: "PIC24", McuDSPIC: "DSPIC", McuPIC32: "PIC32",
	McuARM: "ARM", McuStellarisM3: "STELLARIS_M3", McuStellarisM4: "STELLARIS_M4",
	McuStellaris: "STELLARIS", McuSTM32L1XX: "STM32L1XX", McuSTM32F1XX: "STM32F1XX",
	McuSTM32F2XX: "STM32F2XX", McuSTM32F4XX: "STM32F4XX",
}

// String returns the MCU type's symbolic name, or its numeric value if it
// isn't one of the known constants.
func (t McuType) String() string {
	if name, ok := mcuTypeNames[t]; ok {
		return name
	}
	return errors.Errorf("McuType(%d)", int(t)).Error()
}

// sixteenBitFamilies use packed (align=1) descriptors once McuType is known.
var sixteenBitFamilies = map[McuType]bool{
	McuPIC16: true, McuPIC18: true, McuPIC18FJ: true, McuPIC24: true, McuDSPIC: true,
}

// field describes one record in the descriptor's field table.
type field struct {
	name    string
	nBytes  int
	isEnum  bool
}

const (
	fieldMcuType   = 1
	fieldMcuId     = 2
	fieldEraseBlk  = 3
	fieldWriteBlk  = 4
	fieldBootRev   = 5
	fieldBootStart = 6
	fieldDevDsc    = 7
	fieldMcuSize   = 8
)

var fieldTable = map[byte]field{
	fieldMcuType:   {"McuType", 1, true},
	fieldMcuId:     {"McuId", 4, false},
	fieldEraseBlk:  {"EraseBlock", 2, false},
	fieldWriteBlk:  {"WriteBlock", 2, false},
	fieldBootRev:   {"BootRev", 2, false},
	fieldBootStart: {"BootStart", 4, false},
	fieldDevDsc:    {"DevDsc", 20, false},
	fieldMcuSize:   {"McuSize", 4, false},
}

// ErrUnknownField is returned as a non-fatal condition: parsing stopped
// because a field_type byte didn't match any known record, or because a
// known field ran past the declared descriptor size.
var ErrUnknownField = errors.New("bootinfo: unknown field type")

// Info holds the decoded BootInfo descriptor. Fields are left at their
// zero value if the device never emitted them.
type Info struct {
	McuType    McuType
	HasMcuType bool
	McuId      uint32
	EraseBlock uint16
	WriteBlock uint16
	BootRev    uint16
	BootStart  uint32
	DevDsc     [20]byte
	McuSize    uint32

	// seen records which names were successfully decoded, for callers
	// that need to distinguish "absent" from "zero".
	seen map[string]bool
}

// Has reports whether fieldName was present in the descriptor.
func (i *Info) Has(fieldName string) bool {
	return i.seen != nil && i.seen[fieldName]
}

// Parse decodes a BootInfo descriptor out of buf. buf must be at least 1
// byte (the declared size); parsing is bounded to buf[0] bytes, or
// len(buf), whichever is smaller. An unrecognized field_type is not an
// error: parsing stops and whatever was already decoded is returned,
// wrapped with ErrUnknownField so the caller can log it as non-fatal.
func Parse(buf []byte) (*Info, error) {
	if len(buf) < 1 {
		return nil, errors.New("bootinfo: empty buffer")
	}
	bSize := int(buf[0])
	if bSize > len(buf) {
		bSize = len(buf)
	}
	info := &Info{seen: map[string]bool{}}

	pos := 1 // byte 0 is bSize itself, not part of the record stream
	var stopErr error

	for pos < bSize {
		// 1. skip zero padding
		for pos < bSize && buf[pos] == 0 {
			pos++
		}
		if pos >= bSize {
			break
		}

		// 2. read field_type
		ft := buf[pos]
		pos++

		f, ok := fieldTable[ft]
		if !ok {
			logrus.WithField("field_type", ft).Error("bootinfo: unknown field type, stopping parse")
			stopErr = errors.Wrapf(ErrUnknownField, "field_type=%d", ft)
			break
		}

		// 3. alignment
		align := f.nBytes
		if align > 4 {
			align = 4
		}
		if info.HasMcuType && sixteenBitFamilies[info.McuType] {
			align = 1
		}

		// 4. interior alignment padding (only for n_bytes<=4 fields)
		if f.nBytes <= 4 && align > 1 {
			for pos%align != 0 {
				pos++
			}
		}

		if pos+f.nBytes > bSize {
			logrus.WithField("field", f.name).Error("bootinfo: truncated field, stopping parse")
			stopErr = errors.Wrapf(ErrUnknownField, "truncated field %s", f.name)
			break
		}

		if info.seen[f.name] {
			logrus.WithField("field", f.name).Warn("bootinfo: duplicate field, overwriting")
		}

		switch ft {
		case fieldMcuType:
			v := buf[pos]
			mt := McuType(v)
			if _, known := mcuTypeNames[mt]; !known {
				logrus.WithField("value", v).Warn("bootinfo: unmapped McuType enum value, keeping numeric")
			}
			info.McuType = mt
			info.HasMcuType = true
		case fieldMcuId:
			info.McuId = binary.LittleEndian.Uint32(buf[pos : pos+4])
		case fieldEraseBlk:
			info.EraseBlock = binary.LittleEndian.Uint16(buf[pos : pos+2])
		case fieldWriteBlk:
			info.WriteBlock = binary.LittleEndian.Uint16(buf[pos : pos+2])
		case fieldBootRev:
			info.BootRev = binary.LittleEndian.Uint16(buf[pos : pos+2])
		case fieldBootStart:
			info.BootStart = binary.LittleEndian.Uint32(buf[pos : pos+4])
		case fieldDevDsc:
			copy(info.DevDsc[:], buf[pos:pos+20])
		case fieldMcuSize:
			info.McuSize = binary.LittleEndian.Uint32(buf[pos : pos+4])
		}
		info.seen[f.name] = true
		pos += f.nBytes
	}

	return info, stopErr
}
