// Package memaddr maps SNES bus addresses to the linear address space an
// FX Pak Pro exposes over usb2snes.
//
//	bus range                      FX Pak address
//	$7E:0000-$7F:FFFF  WRAM        $F5_0000 + (addr - $7E_0000)
//	$00-$3F:0000-1FFF  WRAM mirror $F5_0000 + offset
//	$80-$BF:0000-1FFF  WRAM mirror $F5_0000 + offset
//	$70-$7D:0000-7FFF  SRAM        $E0_0000 + (bank - $70) * $8000 + offset
//	$00-$7D:8000-FFFF  ROM (LoROM) (bank & $7F) * $8000 + (offset - $8000)
//	$80-$FF:8000-FFFF  ROM mirror  same as above
//
// Anything else, such as hardware registers, has no FX Pak equivalent.
package memaddr

import (
	"errors"
	"fmt"
)

var ErrUnmapped = errors.New("address has no FX Pak mapping")

// Base addresses of the FX Pak regions.
const (
	WRAMBase = 0xF50000
	SRAMBase = 0xE00000
	ROMBase  = 0x000000

	WRAMSize = 0x20000
)

type region struct {
	name           string
	bankLo, bankHi uint32
	offLo, offHi   uint32
	translate      func(bank, off uint32) uint32
}

var regions = []region{
	{"wram", 0x7E, 0x7F, 0x0000, 0xFFFF, func(bank, off uint32) uint32 {
		return WRAMBase + (bank-0x7E)<<16 + off
	}},
	{"wram mirror", 0x00, 0x3F, 0x0000, 0x1FFF, wramMirror},
	{"wram mirror", 0x80, 0xBF, 0x0000, 0x1FFF, wramMirror},
	{"sram", 0x70, 0x7D, 0x0000, 0x7FFF, func(bank, off uint32) uint32 {
		return SRAMBase + (bank-0x70)*0x8000 + off
	}},
	{"rom", 0x00, 0x7D, 0x8000, 0xFFFF, lorom},
	{"rom mirror", 0x80, 0xFF, 0x8000, 0xFFFF, lorom},
}

func wramMirror(_, off uint32) uint32 { return WRAMBase + off }

func lorom(bank, off uint32) uint32 {
	return ROMBase + (bank&0x7F)*0x8000 + (off - 0x8000)
}

// ToFXPak translates a 24-bit bus address.
func ToFXPak(addr uint32) (uint32, error) {
	if addr > 0xFFFFFF {
		return 0, fmt.Errorf("%w: $%X is wider than 24 bits", ErrUnmapped, addr)
	}
	bank, off := addr>>16, addr&0xFFFF
	for _, r := range regions {
		if bank >= r.bankLo && bank <= r.bankHi && off >= r.offLo && off <= r.offHi {
			return r.translate(bank, off), nil
		}
	}
	return 0, fmt.Errorf("%w: $%06X", ErrUnmapped, addr)
}

// Region names the bus region an address falls in, or "" when unmapped.
func Region(addr uint32) string {
	bank, off := addr>>16, addr&0xFFFF
	for _, r := range regions {
		if bank >= r.bankLo && bank <= r.bankHi && off >= r.offLo && off <= r.offHi {
			return r.name
		}
	}
	return ""
}
