package world

// BlockType enumerates known world block categories. Values are packed into
// 7 bits of a mesh vertex, so the set must stay below 128 entries.
type BlockType uint8

const (
	BlockAir BlockType = iota
	BlockBedrock
	BlockStone
	BlockDirt
	BlockGrass
	BlockSand
	BlockSnow
	BlockGravel
	BlockLog
	BlockLeaves
	BlockCactus
	BlockWater
	BlockGlass
	BlockIce

	blockTypeCount
)

var blockTypeNames = [blockTypeCount]string{
	BlockAir:     "air",
	BlockBedrock: "bedrock",
	BlockStone:   "stone",
	BlockDirt:    "dirt",
	BlockGrass:   "grass",
	BlockSand:    "sand",
	BlockSnow:    "snow",
	BlockGravel:  "gravel",
	BlockLog:     "log",
	BlockLeaves:  "leaves",
	BlockCactus:  "cactus",
	BlockWater:   "water",
	BlockGlass:   "glass",
	BlockIce:     "ice",
}

func (t BlockType) String() string {
	if t < blockTypeCount {
		return blockTypeNames[t]
	}
	return "unknown"
}

// Valid reports whether t names a known block type.
func (t BlockType) Valid() bool {
	return t < blockTypeCount
}

// IsAir reports whether t is empty space.
func (t BlockType) IsAir() bool {
	return t == BlockAir
}

// Solid reports whether t stops skylight entirely.
func (t BlockType) Solid() bool {
	switch t {
	case BlockAir, BlockLeaves, BlockWater, BlockGlass, BlockIce:
		return false
	}
	return t < blockTypeCount
}

// Transparent reports whether light passes through t with attenuation.
func (t BlockType) Transparent() bool {
	switch t {
	case BlockLeaves, BlockWater, BlockGlass, BlockIce:
		return true
	}
	return false
}

// ParseBlockType maps a block name back to its type.
func ParseBlockType(name string) (BlockType, bool) {
	for i, n := range blockTypeNames {
		if n == name {
			return BlockType(i), true
		}
	}
	return BlockAir, false
}

// Metadata bit layout.
const (
	// MetaNatural tags blocks placed by world generation (trees, cacti).
	MetaNatural uint8 = 0x80
	// MetaSource marks a water block that never decays.
	MetaSource uint8 = 0x40
	// MetaLevelMask selects the water level nibble.
	MetaLevelMask uint8 = 0x0f
)

// MaxLight is the brightest light level; skylight enters every column at
// this value.
const MaxLight uint8 = 15

// MaxWaterLevel is the level held by water sources.
const MaxWaterLevel uint8 = 7

// Block is the per-voxel record stored in a chunk grid.
type Block struct {
	Type     BlockType
	Metadata uint8
	Light    uint8
}

// Air is the sentinel returned for any query outside loaded space.
var Air = Block{Type: BlockAir}

// NewBlock returns a block of the given type with no metadata and no light.
func NewBlock(t BlockType) Block {
	return Block{Type: t}
}

// NaturalBlock returns a generation-placed block.
func NaturalBlock(t BlockType) Block {
	return Block{Type: t, Metadata: MetaNatural}
}

// WaterSource returns a full, non-decaying water block.
func WaterSource() Block {
	return Block{Type: BlockWater, Metadata: MetaSource | MaxWaterLevel}
}

// FlowingWater returns a water block with the given level clamped to 1..MaxWaterLevel.
func FlowingWater(level uint8) Block {
	if level < 1 {
		level = 1
	}
	if level > MaxWaterLevel {
		level = MaxWaterLevel
	}
	return Block{Type: BlockWater, Metadata: level}
}

func (b Block) IsAir() bool       { return b.Type == BlockAir }
func (b Block) Solid() bool       { return b.Type.Solid() }
func (b Block) Transparent() bool { return b.Type.Transparent() }
func (b Block) Natural() bool     { return b.Metadata&MetaNatural != 0 }

// IsWater reports whether b holds water of any level.
func (b Block) IsWater() bool { return b.Type == BlockWater }

// IsSource reports whether b is a water source.
func (b Block) IsSource() bool { return b.Type == BlockWater && b.Metadata&MetaSource != 0 }

// WaterLevel returns the water level of b, zero for anything but water.
func (b Block) WaterLevel() uint8 {
	if b.Type != BlockWater {
		return 0
	}
	return b.Metadata & MetaLevelMask
}

// WithLight returns b with its light clamped into [0, MaxLight].
func (b Block) WithLight(level int) Block {
	b.Light = ClampLight(level)
	return b
}

// SameMaterial reports whether a and b differ only in light.
func (b Block) SameMaterial(other Block) bool {
	return b.Type == other.Type && b.Metadata == other.Metadata
}

// ClampLight restricts level to the valid light range.
func ClampLight(level int) uint8 {
	if level < 0 {
		return 0
	}
	if level > int(MaxLight) {
		return MaxLight
	}
	return uint8(level)
}
