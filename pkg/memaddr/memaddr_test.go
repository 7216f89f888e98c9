package memaddr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFXPak(t *testing.T) {
	tests := []struct {
		addr   uint32
		want   uint32
		region string
	}{
		{0x7EF340, 0xF5F340, "wram"},
		{0x7E0000, 0xF50000, "wram"},
		{0x7FFFFF, 0xF6FFFF, "wram"},
		{0x001000, 0xF51000, "wram mirror"},
		{0x3F0010, 0xF50010, "wram mirror"},
		{0x811FFF, 0xF51FFF, "wram mirror"},
		{0x700000, 0xE00000, "sram"},
		{0x717FFF, 0xE0FFFF, "sram"},
		{0x7D0000, 0xE68000, "sram"},
		{0x008000, 0x000000, "rom"},
		{0x018000, 0x008000, "rom"},
		{0x02FFFF, 0x017FFF, "rom"},
		{0x808000, 0x000000, "rom mirror"},
		{0xFFFFFF, 0x3FFFFF, "rom mirror"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("$%06X", tt.addr), func(t *testing.T) {
			got, err := ToFXPak(tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "got $%06X", got)
			assert.Equal(t, tt.region, Region(tt.addr))
		})
	}
}

func TestToFXPak_Unmapped(t *testing.T) {
	for _, addr := range []uint32{
		0x002100, // PPU registers
		0x004200,
		0x400000,
		0x6F7FFF,
		0xC00000,
		0x1000000,
	} {
		_, err := ToFXPak(addr)
		assert.ErrorIs(t, err, ErrUnmapped, "$%X", addr)
		assert.Empty(t, Region(addr))
	}
}

func TestToFXPak_Deterministic(t *testing.T) {
	a, err := ToFXPak(0x7EF36D)
	require.NoError(t, err)
	b, err := ToFXPak(0x7EF36D)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
