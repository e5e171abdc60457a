package delta

import (
	"bytes"
	"time"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"voxelstream/internal/world"
)

var ErrEmptyDelta = errors.New("chunk delta has no blocks")

type wireDelta struct {
	ChunkX    int32       `nbt:"chunkX"`
	ChunkZ    int32       `nbt:"chunkZ"`
	Seq       int64       `nbt:"seq"`
	Timestamp int64       `nbt:"timestamp"`
	Blocks    []wireBlock `nbt:"blocks"`
}

type wireBlock struct {
	X    int32 `nbt:"x"`
	Y    int32 `nbt:"y"`
	Z    int32 `nbt:"z"`
	Type int16 `nbt:"type"`
	Meta int16 `nbt:"meta"`
}

// Encode writes d as a zstd-compressed NBT compound.
func Encode(d ChunkDelta) ([]byte, error) {
	if len(d.Blocks) == 0 {
		return nil, ErrEmptyDelta
	}
	w := wireDelta{
		ChunkX:    int32(d.Chunk.X),
		ChunkZ:    int32(d.Chunk.Z),
		Seq:       int64(d.Seq),
		Timestamp: d.Timestamp.UnixNano(),
		Blocks:    make([]wireBlock, len(d.Blocks)),
	}
	for i, b := range d.Blocks {
		w.Blocks[i] = wireBlock{
			X:    int32(b.Coord.X),
			Y:    int32(b.Coord.Y),
			Z:    int32(b.Coord.Z),
			Type: int16(b.Type),
			Meta: int16(b.Meta),
		}
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Wrap(err, "create zstd writer")
	}
	if err := nbt.NewEncoder(enc).Encode(w, "delta"); err != nil {
		enc.Close()
		return nil, errors.Wrapf(err, "encode delta for chunk %v", d.Chunk)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "flush zstd writer")
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode. Unknown block types are rejected.
func Decode(data []byte) (ChunkDelta, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return ChunkDelta{}, errors.Wrap(err, "create zstd reader")
	}
	defer dec.Close()

	var w wireDelta
	if _, err := nbt.NewDecoder(dec).Decode(&w); err != nil {
		return ChunkDelta{}, errors.Wrap(err, "decode delta")
	}
	if len(w.Blocks) == 0 {
		return ChunkDelta{}, ErrEmptyDelta
	}
	d := ChunkDelta{
		Chunk:     world.ChunkCoord{X: int(w.ChunkX), Z: int(w.ChunkZ)},
		Seq:       uint64(w.Seq),
		Timestamp: time.Unix(0, w.Timestamp).UTC(),
		Blocks:    make([]BlockUpdate, len(w.Blocks)),
	}
	for i, b := range w.Blocks {
		t := world.BlockType(b.Type)
		if b.Type < 0 || !t.Valid() {
			return ChunkDelta{}, errors.Errorf("delta for chunk %v: unknown block type %d", d.Chunk, b.Type)
		}
		if b.Meta < 0 || b.Meta > 0xff {
			return ChunkDelta{}, errors.Errorf("delta for chunk %v: metadata %d out of range", d.Chunk, b.Meta)
		}
		d.Blocks[i] = BlockUpdate{
			Coord: world.BlockCoord{X: int(b.X), Y: int(b.Y), Z: int(b.Z)},
			Type:  t,
			Meta:  uint8(b.Meta),
		}
	}
	return d, nil
}
