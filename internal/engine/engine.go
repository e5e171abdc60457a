// Package engine drives the main-thread frame: streaming, result installs,
// block edits, water, light and remeshing, in that order. Everything except
// SubmitEdit must be called from the goroutine that runs frames.
package engine

import (
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"voxelstream/internal/config"
	"voxelstream/internal/delta"
	"voxelstream/internal/lighting"
	"voxelstream/internal/mesh"
	"voxelstream/internal/streaming"
	"voxelstream/internal/terrain"
	"voxelstream/internal/water"
	"voxelstream/internal/worker"
	"voxelstream/internal/world"
)

// Frame stage names, in execution order.
const (
	StageStream = "stream"
	StageDrain  = "drain"
	StageEdits  = "edits"
	StageWater  = "water"
	StageLight  = "light"
	StageRemesh = "remesh"
	StageBatch  = "batch"
)

type Options struct {
	Logger *log.Logger
	// Pipeline replaces the terrain generation pipeline, mostly for tests.
	Pipeline worker.Pipeline
	// Dispatch runs a frame on the owning thread. Nil calls it directly.
	Dispatch Dispatcher
	// OnFrame is called after every frame started by Run.
	OnFrame func(FrameStats)
}

// FrameStats reports the work one frame did.
type FrameStats struct {
	Frame    uint64
	Observer world.ChunkCoord
	Update   streaming.UpdateStats
	Drain    streaming.DrainStats
	Edits    int
	Water    water.TickStats
	Relit    int
	Remeshed int
	Rebuilt  []mesh.GroupCoord
	Resident int
}

type Engine struct {
	cfg    *config.Config
	logger *log.Logger
	dim    world.Dimensions

	store     *world.Store
	pool      *worker.Pool
	streaming *streaming.Manager
	water     *water.Simulator
	batcher   *mesh.Batcher
	deltas    *delta.Accumulator
	edits     *editQueue
	changes   *world.ChangeSet
	timer     *timer

	dispatch  Dispatcher
	onFrame   func(FrameStats)
	newTicker tickerFactory

	frame    uint64
	observer world.ChunkCoord
}

// New validates cfg and starts the worker pool. Configuration errors are
// returned before any generation work is queued.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	dim := world.Dimensions{
		Width:  cfg.World.ChunkWidth,
		Depth:  cfg.World.ChunkDepth,
		Height: cfg.World.ChunkHeight,
	}

	buffers := world.NewBufferPool(dim)
	pipeline := opts.Pipeline
	if pipeline == nil {
		gen := terrain.NewGenerator(cfg, logger)
		pipeline = worker.NewGenerationPipeline(gen, buffers)
	}
	pool := worker.New(pipeline, worker.Options{
		Workers:       cfg.Workers.Count,
		QueueCapacity: cfg.Workers.QueueCapacity,
		Logger:        logger,
	})

	store := world.NewStore(dim)
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = directDispatch
	}
	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		dim:       dim,
		store:     store,
		pool:      pool,
		streaming: streaming.NewManager(store, pool, buffers, cfg, logger),
		water:     water.NewSimulator(store, cfg.Water),
		batcher:   mesh.NewBatcher(cfg.Mesh.GroupSize),
		deltas:    delta.NewAccumulator(dim),
		edits:     newEditQueue(),
		changes:   world.NewChangeSet(dim),
		timer:     newTimer(),
		dispatch:  dispatch,
		onFrame:   opts.OnFrame,
		newTicker: defaultTickerFactory(),
	}
	if cfg.Engine.Verbose {
		logger.Printf("engine ready: %d workers, chunk %dx%dx%d, radius %d",
			pool.Workers(), dim.Width, dim.Depth, dim.Height, cfg.Streaming.Radius)
	}
	return e, nil
}

func (e *Engine) Dimensions() world.Dimensions {
	return e.dim
}

func (e *Engine) Store() *world.Store {
	return e.store
}

// Observer returns the chunk the observer stood in at the last frame.
func (e *Engine) Observer() world.ChunkCoord {
	return e.observer
}

// ChunkAt returns the chunk column containing a world-space position.
func (e *Engine) ChunkAt(pos mgl32.Vec3) world.ChunkCoord {
	return e.dim.ChunkOf(world.BlockCoord{
		X: int(math.Floor(float64(pos.X()))),
		Z: int(math.Floor(float64(pos.Z()))),
	})
}

// Frame runs one main-thread frame for an observer at pos.
func (e *Engine) Frame(pos mgl32.Vec3) FrameStats {
	e.frame++
	center := e.ChunkAt(pos)
	e.observer = center
	stats := FrameStats{Frame: e.frame, Observer: center}

	done := e.timer.start(StageStream)
	stats.Update = e.streaming.Update(center, e.cfg.Streaming.Radius)
	for _, c := range stats.Update.Evicted {
		e.batcher.Remove(c)
	}
	done()

	done = e.timer.start(StageDrain)
	stats.Drain = e.streaming.Drain(e.cfg.Streaming.MaxInstallsPerFrame)
	for _, c := range stats.Drain.Installed {
		e.batcher.MarkDirty(c)
	}
	done()

	done = e.timer.start(StageEdits)
	for _, edit := range e.edits.drain(0) {
		if e.apply(edit, true) {
			stats.Edits++
		}
	}
	done()

	done = e.timer.start(StageWater)
	if e.cfg.Water.Enabled {
		stats.Water = e.water.Tick(e.cfg.Water.BatchPerTick)
		for _, change := range stats.Water.Changes {
			e.changes.Add(change)
		}
	}
	done()

	done = e.timer.start(StageLight)
	stats.Relit = e.relight()
	done()

	done = e.timer.start(StageRemesh)
	stats.Remeshed = e.remesh(center, e.cfg.Mesh.MaxRemeshPerFrame)
	done()

	done = e.timer.start(StageBatch)
	stats.Rebuilt = e.batcher.Rebuild(e.cfg.Mesh.MaxBatchRebuildsPerFrame, e.store.Chunk)
	done()

	stats.Resident = e.store.Len()
	return stats
}

// apply writes an edit into the store and schedules light, water and, when
// record is set, delta work for it.
func (e *Engine) apply(edit Edit, record bool) bool {
	change, ok := e.store.SetBlock(edit.Coord, edit.Block)
	if !ok {
		if e.cfg.Engine.Verbose {
			e.logger.Printf("edit at %v ignored: chunk not resident", edit.Coord)
		}
		return false
	}
	if !change.Changed() {
		return false
	}
	e.changes.Add(change)
	if record {
		e.deltas.Add(change)
	}
	if e.cfg.Water.Enabled {
		e.water.EnqueueAround(edit.Coord)
	}
	return true
}

// relight runs column light updates for every block changed since the last
// frame and returns the number of chunks whose light changed.
func (e *Engine) relight() int {
	if e.changes.Len() == 0 {
		return 0
	}
	byChunk := make(map[world.ChunkCoord][]lighting.Column)
	seen := make(map[world.BlockCoord]struct{})
	for _, change := range e.changes.Changes() {
		c, x, _, z := e.dim.Local(change.Coord)
		col := world.BlockCoord{X: change.Coord.X, Z: change.Coord.Z}
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		byChunk[c] = append(byChunk[c], lighting.Column{X: x, Z: z})
	}
	e.changes.Reset()

	relit := 0
	for c, cols := range byChunk {
		chunk, ok := e.store.Chunk(c)
		if !ok {
			continue
		}
		if lighting.UpdateColumns(chunk, cols) {
			relit++
		}
	}
	return relit
}

// remesh rebuilds up to limit dirty chunk meshes, nearest to center first.
func (e *Engine) remesh(center world.ChunkCoord, limit int) int {
	dirty := e.store.NeedsRemesh(center)
	if limit > 0 && len(dirty) > limit {
		dirty = dirty[:limit]
	}
	for _, c := range dirty {
		chunk, ok := e.store.Chunk(c)
		if !ok {
			continue
		}
		chunk.Mesh = mesh.Build(chunk, mesh.NeighborhoodOf(c, e.store.Chunk))
		chunk.NeedsRemesh = false
		e.batcher.MarkDirty(c)
	}
	return len(dirty)
}

// Block returns the block at bc, or air outside the resident set.
func (e *Engine) Block(bc world.BlockCoord) world.Block {
	return e.store.Block(bc)
}

// SetBlock applies an edit immediately. Light, water and meshing follow on
// the next frame. It reports false when the block is not resident.
func (e *Engine) SetBlock(bc world.BlockCoord, block world.Block) bool {
	_, ok := e.store.Lookup(bc)
	if !ok {
		return false
	}
	e.apply(Edit{Coord: bc, Block: block}, true)
	return true
}

// SubmitEdit queues an edit for the next frame. Safe for concurrent use.
func (e *Engine) SubmitEdit(edit Edit) {
	e.edits.push(edit)
}

// PendingEdits returns the number of queued edits.
func (e *Engine) PendingEdits() int {
	return e.edits.len()
}

// WaterPending returns the number of cells waiting for water relaxation.
func (e *Engine) WaterPending() int {
	return e.water.Pending()
}

// Mesh returns the mesh of a resident chunk.
func (e *Engine) Mesh(c world.ChunkCoord) (world.Mesh, bool) {
	chunk, ok := e.store.Chunk(c)
	if !ok {
		return world.Mesh{}, false
	}
	return chunk.Mesh, true
}

// Batches returns the current draw batches.
func (e *Engine) Batches() []*mesh.Batch {
	return e.batcher.Batches()
}

// FlushDeltas returns the edits made since the previous flush, one delta
// per chunk.
func (e *Engine) FlushDeltas() []delta.ChunkDelta {
	return e.deltas.Flush()
}

// ApplyDelta applies a delta received from a peer. Applied blocks are not
// recorded for the next FlushDeltas. It returns the number of blocks that
// changed.
func (e *Engine) ApplyDelta(d delta.ChunkDelta) int {
	applied := 0
	for _, b := range d.Blocks {
		if e.dim.ChunkOf(b.Coord) != d.Chunk {
			e.logger.Printf("delta %d for chunk %v carries foreign block %v", d.Seq, d.Chunk, b.Coord)
			continue
		}
		if e.apply(Edit{Coord: b.Coord, Block: b.Block()}, false) {
			applied++
		}
	}
	return applied
}

// Timings returns per-stage frame timings.
func (e *Engine) Timings() []StageTiming {
	return e.timer.snapshot()
}

func (e *Engine) ResetTimings() {
	e.timer.reset()
}

// PoolStats returns the worker pool counters.
func (e *Engine) PoolStats() worker.Stats {
	return e.pool.Stats()
}

// Close stops the worker pool. Running jobs finish their current stage.
func (e *Engine) Close() {
	e.pool.Close()
}
