package worker

import (
	"context"

	"github.com/pkg/errors"

	"voxelstream/internal/lighting"
	"voxelstream/internal/mesh"
	"voxelstream/internal/terrain"
	"voxelstream/internal/world"
)

// GenerationPipeline runs terrain, vegetation, lighting and the initial
// mesh on a buffer taken from the shared pool. Cancellation is checked
// between stages only.
type GenerationPipeline struct {
	gen     *terrain.Generator
	buffers *world.BufferPool
}

func NewGenerationPipeline(gen *terrain.Generator, buffers *world.BufferPool) *GenerationPipeline {
	if buffers == nil {
		buffers = world.NewBufferPool(gen.Dimensions())
	}
	return &GenerationPipeline{gen: gen, buffers: buffers}
}

func (p *GenerationPipeline) Buffers() *world.BufferPool {
	return p.buffers
}

func (p *GenerationPipeline) Run(ctx context.Context, job Job) (*world.Chunk, error) {
	if job.Seed != 0 && job.Seed != p.gen.Seed() {
		return nil, errors.Errorf("job %v seed %d does not match generator seed %d", job.Coord, job.Seed, p.gen.Seed())
	}
	chunk := p.buffers.Get(job.Coord)
	fail := func(stage string, err error) (*world.Chunk, error) {
		p.buffers.Put(chunk)
		return nil, errors.Wrapf(err, "%s stage for %v", stage, job.Coord)
	}

	columns, err := p.gen.GenerateTerrain(ctx, chunk)
	if err != nil {
		return fail("terrain", err)
	}
	if err := ctx.Err(); err != nil {
		return fail("vegetation", err)
	}
	p.gen.PlaceVegetation(chunk, columns)

	if err := ctx.Err(); err != nil {
		return fail("lighting", err)
	}
	lighting.Compute(chunk)

	if err := ctx.Err(); err != nil {
		return fail("mesh", err)
	}
	chunk.Mesh = mesh.Build(chunk, mesh.Neighborhood{})
	chunk.NeedsRemesh = false
	return chunk, nil
}
