package world

import (
	"image/color"
	"strconv"
	"strings"
)

// BlockAppearance captures visual styling for a block type.
type BlockAppearance struct {
	Color string
	Alpha uint8
}

// DefaultAppearances enumerates the built-in block visuals.
var DefaultAppearances = map[BlockType]BlockAppearance{
	BlockBedrock: {Color: "#3a3a3a", Alpha: 255},
	BlockStone:   {Color: "#7d7d7d", Alpha: 255},
	BlockDirt:    {Color: "#8b5a2b", Alpha: 255},
	BlockGrass:   {Color: "#5d9b3d", Alpha: 255},
	BlockSand:    {Color: "#dbcf8e", Alpha: 255},
	BlockSnow:    {Color: "#f2f5f7", Alpha: 255},
	BlockGravel:  {Color: "#8a8580", Alpha: 255},
	BlockLog:     {Color: "#6b4f2a", Alpha: 255},
	BlockLeaves:  {Color: "#3f7a2a", Alpha: 220},
	BlockCactus:  {Color: "#4f8a3a", Alpha: 255},
	BlockWater:   {Color: "#3461c4", Alpha: 170},
	BlockGlass:   {Color: "#cfe8ef", Alpha: 90},
	BlockIce:     {Color: "#a5c8f0", Alpha: 200},
}

// ColorOf resolves the display colour of a block type.
func ColorOf(t BlockType) color.NRGBA {
	if appearance, ok := DefaultAppearances[t]; ok {
		if col, ok := parseHexColor(appearance.Color); ok {
			col.A = appearance.Alpha
			return col
		}
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}
