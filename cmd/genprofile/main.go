package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"voxelstream/internal/config"
	"voxelstream/internal/lighting"
	"voxelstream/internal/mesh"
	"voxelstream/internal/terrain"
	"voxelstream/internal/worker"
	"voxelstream/internal/world"
)

// countingPipeline wraps a pipeline and accumulates output statistics.
type countingPipeline struct {
	base      worker.Pipeline
	chunks    atomic.Int64
	triangles atomic.Int64
}

func (p *countingPipeline) Run(ctx context.Context, job worker.Job) (*world.Chunk, error) {
	chunk, err := p.base.Run(ctx, job)
	if err == nil {
		p.chunks.Add(1)
		p.triangles.Add(int64(chunk.Mesh.Triangles()))
	}
	return chunk, err
}

type stageTimes struct {
	terrain, vegetation, light, mesh time.Duration
}

func main() {
	var (
		cfgPath    = flag.String("config", "", "optional configuration file")
		side       = flag.Int("chunks", 8, "chunks per axis of the generated square")
		maxWorkers = flag.Int("workers", runtime.NumCPU(), "highest worker count to profile")
		samples    = flag.Int("samples", 16, "chunks used for the per-stage breakdown")
	)
	flag.Parse()

	if *side <= 0 || *maxWorkers <= 0 || *samples <= 0 {
		fmt.Fprintln(os.Stderr, "chunks, workers and samples must be positive")
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	gen := terrain.NewGenerator(cfg, nil)
	dim := gen.Dimensions()

	coords := make([]world.ChunkCoord, 0, *side**side)
	for z := 0; z < *side; z++ {
		for x := 0; x < *side; x++ {
			coords = append(coords, world.ChunkCoord{X: x, Z: z})
		}
	}

	fmt.Println("== Chunk Generation Profile ==")
	fmt.Printf("Seed: %d\n", gen.Seed())
	fmt.Printf("Chunk dimensions: %dx%dx%d\n", dim.Width, dim.Depth, dim.Height)
	fmt.Printf("Chunks per run: %d\n", len(coords))

	for workers := 1; workers <= *maxWorkers; workers *= 2 {
		pipe := &countingPipeline{base: worker.NewGenerationPipeline(gen, nil)}
		elapsed, failed := profileRun(pipe, workers, coords, gen.Seed())
		perSecond := float64(len(coords)) / elapsed.Seconds()
		fmt.Printf("workers=%-3d wall %-12s %8.1f chunks/s  avg triangles %.0f  failed %d\n",
			workers, elapsed.Round(time.Millisecond), perSecond,
			float64(pipe.triangles.Load())/float64(max(pipe.chunks.Load(), 1)), failed)
	}

	n := min(*samples, len(coords))
	times, err := profileStages(gen, coords[:n])
	if err != nil {
		fmt.Fprintf(os.Stderr, "stage profile: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Per-stage average over %d chunks:\n", n)
	fmt.Printf("  terrain:    %s\n", times.terrain/time.Duration(n))
	fmt.Printf("  vegetation: %s\n", times.vegetation/time.Duration(n))
	fmt.Printf("  lighting:   %s\n", times.light/time.Duration(n))
	fmt.Printf("  mesh:       %s\n", times.mesh/time.Duration(n))
}

// profileRun pushes every coordinate through a pool of the given size and
// waits until all results are polled.
func profileRun(pipe worker.Pipeline, workers int, coords []world.ChunkCoord, seed int64) (time.Duration, int) {
	pool := worker.New(pipe, worker.Options{Workers: workers, QueueCapacity: len(coords)})
	defer pool.Close()

	start := time.Now()
	for i, c := range coords {
		pool.Submit(worker.Job{Coord: c, Seed: seed, Priority: i})
	}
	received, failed := 0, 0
	for received < len(coords) {
		results := pool.Poll(0)
		if len(results) == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		received += len(results)
	}
	return time.Since(start), failed
}

func profileStages(gen *terrain.Generator, coords []world.ChunkCoord) (stageTimes, error) {
	var times stageTimes
	ctx := context.Background()
	for _, c := range coords {
		chunk := world.NewChunk(c, gen.Dimensions())

		start := time.Now()
		columns, err := gen.GenerateTerrain(ctx, chunk)
		if err != nil {
			return times, err
		}
		times.terrain += time.Since(start)

		start = time.Now()
		gen.PlaceVegetation(chunk, columns)
		times.vegetation += time.Since(start)

		start = time.Now()
		lighting.Compute(chunk)
		times.light += time.Since(start)

		start = time.Now()
		mesh.Build(chunk, mesh.Neighborhood{})
		times.mesh += time.Since(start)
	}
	return times, nil
}
