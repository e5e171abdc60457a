package world

import "testing"

var testDim = Dimensions{Width: 16, Depth: 16, Height: 64}

func TestChunkSetAndGet(t *testing.T) {
	chunk := NewChunk(ChunkCoord{X: 1, Z: -2}, testDim)
	if !chunk.SetLocalBlock(3, 10, 5, NewBlock(BlockStone)) {
		t.Fatalf("expected set to succeed")
	}
	got, ok := chunk.LocalBlock(3, 10, 5)
	if !ok || got.Type != BlockStone {
		t.Fatalf("expected stone, got %+v ok=%v", got, ok)
	}
	if _, ok := chunk.LocalBlock(16, 0, 0); ok {
		t.Fatalf("expected out-of-range read to fail")
	}
	if chunk.SetLocalBlock(0, 64, 0, NewBlock(BlockStone)) {
		t.Fatalf("expected out-of-range write to fail")
	}
	if chunk.At(-1, 0, 0) != Air {
		t.Fatalf("expected out-of-range At to return air")
	}
}

func TestChunkColumnIsContiguous(t *testing.T) {
	chunk := NewChunk(ChunkCoord{}, testDim)
	col := chunk.Column(2, 7)
	if len(col) != testDim.Height {
		t.Fatalf("expected column length %d, got %d", testDim.Height, len(col))
	}
	col[12] = NewBlock(BlockDirt)
	if got := chunk.At(2, 12, 7); got.Type != BlockDirt {
		t.Fatalf("column write not visible through At: %+v", got)
	}
	if h := chunk.SurfaceHeight(2, 7); h != 12 {
		t.Fatalf("expected surface 12, got %d", h)
	}
}

func TestForEachBlockUsesWorldCoordinates(t *testing.T) {
	chunk := NewChunk(ChunkCoord{X: -1, Z: 2}, testDim)
	chunk.SetLocalBlock(0, 4, 1, NewBlock(BlockSand))
	var seen []BlockCoord
	chunk.ForEachBlock(func(global BlockCoord, block Block) bool {
		seen = append(seen, global)
		return true
	})
	want := BlockCoord{X: -16, Y: 4, Z: 33}
	if len(seen) != 1 || seen[0] != want {
		t.Fatalf("expected [%v], got %v", want, seen)
	}
}

func TestChunkEqualAndClone(t *testing.T) {
	a := NewChunk(ChunkCoord{X: 3}, testDim)
	a.SetLocalBlock(1, 1, 1, NaturalBlock(BlockLog))
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatalf("clone should equal original")
	}
	b.SetLocalBlock(1, 1, 1, NewBlock(BlockLog))
	if a.Equal(b) {
		t.Fatalf("metadata difference should break equality")
	}
}

func TestBufferPoolReturnsClearedChunks(t *testing.T) {
	pool := NewBufferPool(testDim)
	first := pool.Get(ChunkCoord{X: 1})
	first.SetLocalBlock(0, 0, 0, NewBlock(BlockStone))
	pool.Put(first)
	if first.Blocks() != nil {
		t.Fatalf("released chunk should drop its grid")
	}
	second := pool.Get(ChunkCoord{X: 2})
	if second.Coord != (ChunkCoord{X: 2}) {
		t.Fatalf("unexpected coord %v", second.Coord)
	}
	for i, b := range second.Blocks() {
		if b != Air {
			t.Fatalf("block %d not cleared: %+v", i, b)
		}
	}
}

func TestLocalHandlesNegativeCoordinates(t *testing.T) {
	c, x, y, z := testDim.Local(BlockCoord{X: -1, Y: 9, Z: -17})
	if c != (ChunkCoord{X: -1, Z: -2}) || x != 15 || y != 9 || z != 15 {
		t.Fatalf("unexpected local mapping %v %d %d %d", c, x, y, z)
	}
}

func TestBlockClassification(t *testing.T) {
	cases := []struct {
		block       BlockType
		solid       bool
		transparent bool
	}{
		{BlockAir, false, false},
		{BlockStone, true, false},
		{BlockLog, true, false},
		{BlockLeaves, false, true},
		{BlockWater, false, true},
		{BlockGlass, false, true},
	}
	for _, tc := range cases {
		if tc.block.Solid() != tc.solid || tc.block.Transparent() != tc.transparent {
			t.Fatalf("%s: solid=%v transparent=%v", tc.block, tc.block.Solid(), tc.block.Transparent())
		}
	}
	if got := (Block{}).WithLight(40).Light; got != MaxLight {
		t.Fatalf("expected light clamp to %d, got %d", MaxLight, got)
	}
	if got := FlowingWater(3).WaterLevel(); got != 3 {
		t.Fatalf("expected level 3, got %d", got)
	}
	if !WaterSource().IsSource() || FlowingWater(7).IsSource() {
		t.Fatalf("source flag mismatch")
	}
}
