package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"voxelstream/internal/config"
	"voxelstream/internal/worker"
	"voxelstream/internal/world"
)

var testDim = world.Dimensions{Width: 16, Depth: 16, Height: 16}

type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) open() {
	g.once.Do(func() { close(g.ch) })
}

func gatedPipeline(g *gate) worker.Pipeline {
	return worker.PipelineFunc(func(ctx context.Context, job worker.Job) (*world.Chunk, error) {
		select {
		case <-g.ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return world.NewChunk(job.Coord, testDim), nil
	})
}

func instantPipeline() worker.Pipeline {
	g := newGate()
	g.open()
	return gatedPipeline(g)
}

func harness(t *testing.T, pipe worker.Pipeline, workers int, mutate func(*config.Config)) (*Manager, *world.Store, *worker.Pool) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	store := world.NewStore(testDim)
	pool := worker.New(pipe, worker.Options{Workers: workers, QueueCapacity: cfg.Workers.QueueCapacity})
	t.Cleanup(pool.Close)
	return NewManager(store, pool, world.NewBufferPool(testDim), cfg, nil), store, pool
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDesiredSetOrdering(t *testing.T) {
	center := world.ChunkCoord{X: -3, Z: 8}
	set := DesiredSet(center, 3)
	if len(set) != 49 {
		t.Fatalf("expected 49 coordinates, got %d", len(set))
	}
	if set[0] != center {
		t.Fatalf("expected the centre first, got %v", set[0])
	}
	seen := make(map[world.ChunkCoord]struct{})
	for i, c := range set {
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate coordinate %v", c)
		}
		seen[c] = struct{}{}
		if c.Chebyshev(center) > 3 {
			t.Fatalf("%v outside the radius", c)
		}
		if i > 0 && set[i-1].Chebyshev(center) > c.Chebyshev(center) {
			t.Fatalf("ordering regressed at %d: %v before %v", i, set[i-1], c)
		}
	}
	if DesiredSet(center, -1) != nil {
		t.Fatalf("negative radius should be empty")
	}
}

func TestUpdateFillsChebyshevWindow(t *testing.T) {
	m, store, _ := harness(t, instantPipeline(), 2, nil)
	center := world.ChunkCoord{X: 5, Z: 5}
	stats := m.Update(center, 2)
	if stats.Submitted != 25 {
		t.Fatalf("expected 25 submissions, got %d", stats.Submitted)
	}
	waitFor(t, "window to fill", func() bool {
		m.Drain(8)
		return store.Len() == 25
	})

	resident := store.Resident()
	if len(resident) != 25 {
		t.Fatalf("expected 25 resident chunks, got %d", len(resident))
	}
	for _, c := range resident {
		if c.Chebyshev(center) > 2 {
			t.Fatalf("resident chunk %v outside the window", c)
		}
	}
	if again := m.Update(center, 2); again.Submitted != 0 || again.Revived != 0 {
		t.Fatalf("steady window resubmitted work: %+v", again)
	}
}

func TestSingleJobPerCoordinate(t *testing.T) {
	g := newGate()
	m, store, pool := harness(t, gatedPipeline(g), 1, nil)
	defer g.open()

	c := world.ChunkCoord{X: 1, Z: 1}
	m.Update(c, 0)
	if got := m.Update(c, 0).Submitted; got != 0 {
		t.Fatalf("second update submitted %d jobs", got)
	}
	if got := pool.Submit(worker.Job{Coord: c}); got != worker.RejectedDuplicate {
		t.Fatalf("direct resubmit: expected duplicate, got %s", got)
	}
	if st := store.State(c); st != world.StateQueued && st != world.StateGenerating {
		t.Fatalf("unexpected state %s", st)
	}
}

func TestCancelledResultIsNeverInstalled(t *testing.T) {
	g := newGate()
	m, store, pool := harness(t, gatedPipeline(g), 1, nil)
	defer g.open()

	far := world.ChunkCoord{X: 10, Z: 10}
	m.Update(far, 0)
	waitFor(t, "job to start", func() bool {
		_, ok := pool.Running()[far]
		return ok
	})

	stats := m.Update(world.ChunkCoord{}, 0)
	if stats.Cancelled != 1 {
		t.Fatalf("expected one cancellation, got %+v", stats)
	}
	if store.State(far) != world.StateEmpty || !store.HasCancelled(far) {
		t.Fatalf("cancelled coordinate should be EMPTY with a cancellation record")
	}

	g.open()
	waitFor(t, "results to drain", func() bool {
		m.Drain(4)
		return store.Len() == 1 && !store.HasCancelled(far)
	})
	if _, ok := store.Chunk(far); ok {
		t.Fatalf("cancelled chunk was installed")
	}
	if store.State(far) != world.StateEmpty || store.CancelledCount() != 0 {
		t.Fatalf("cancellation leaked: state %s, records %d", store.State(far), store.CancelledCount())
	}
}

func TestReturningObserverRevivesRunningJob(t *testing.T) {
	g := newGate()
	m, store, pool := harness(t, gatedPipeline(g), 1, nil)
	defer g.open()

	far := world.ChunkCoord{X: 10, Z: 10}
	m.Update(far, 0)
	waitFor(t, "job to start", func() bool { return len(pool.Running()) == 1 })
	m.Update(world.ChunkCoord{}, 0)

	stats := m.Update(far, 0)
	if stats.Revived != 1 || stats.Submitted != 0 {
		t.Fatalf("expected a revival without resubmission, got %+v", stats)
	}
	if stats.Cancelled != 1 {
		t.Fatalf("queued origin job should be cancelled, got %+v", stats)
	}
	if store.State(world.ChunkCoord{}) != world.StateEmpty || store.HasCancelled(world.ChunkCoord{}) {
		t.Fatalf("dequeued job should leave no trace")
	}

	g.open()
	waitFor(t, "revived chunk", func() bool {
		m.Drain(4)
		return store.State(far) == world.StateResident
	})
}

func TestEvictionReleasesChunks(t *testing.T) {
	m, store, _ := harness(t, instantPipeline(), 2, nil)
	m.Update(world.ChunkCoord{}, 1)
	waitFor(t, "window to fill", func() bool {
		m.Drain(0)
		return store.Len() == 9
	})

	stats := m.Update(world.ChunkCoord{X: 1}, 1)
	if len(stats.Evicted) != 3 {
		t.Fatalf("expected 3 evictions, got %v", stats.Evicted)
	}
	for _, c := range stats.Evicted {
		if c.X != -1 {
			t.Fatalf("evicted %v which is still wanted", c)
		}
		if store.State(c) != world.StateEmpty {
			t.Fatalf("evicted chunk %v still tracked", c)
		}
	}
	if stats.Submitted != 3 {
		t.Fatalf("expected 3 new submissions, got %d", stats.Submitted)
	}
}

func TestFailedJobIsRetried(t *testing.T) {
	var mu sync.Mutex
	failures := 1
	pipe := worker.PipelineFunc(func(ctx context.Context, job worker.Job) (*world.Chunk, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, errors.New("allocation failed")
		}
		return world.NewChunk(job.Coord, testDim), nil
	})
	m, store, _ := harness(t, pipe, 1, nil)
	c := world.ChunkCoord{X: 2, Z: 2}
	m.Update(c, 0)

	var failed int
	waitFor(t, "failure", func() bool {
		failed += m.Drain(0).Failed
		return failed == 1
	})
	if store.State(c) != world.StateEmpty {
		t.Fatalf("failed coordinate should be EMPTY, got %s", store.State(c))
	}
	if got := m.Update(c, 0).Submitted; got != 1 {
		t.Fatalf("expected a retry submission, got %d", got)
	}
	waitFor(t, "retry install", func() bool {
		m.Drain(0)
		return store.State(c) == world.StateResident
	})
}

func TestSubmitPacing(t *testing.T) {
	g := newGate()
	m, _, _ := harness(t, gatedPipeline(g), 1, func(cfg *config.Config) {
		cfg.Streaming.SubmitsPerSecond = 0.001
		cfg.Streaming.SubmitBurst = 2
	})
	defer g.open()

	stats := m.Update(world.ChunkCoord{}, 1)
	if stats.Submitted != 2 || stats.Deferred != 7 {
		t.Fatalf("expected 2 submitted and 7 deferred, got %+v", stats)
	}
}

func TestPoolCapacityDefersSubmissions(t *testing.T) {
	g := newGate()
	m, store, _ := harness(t, gatedPipeline(g), 1, func(cfg *config.Config) {
		cfg.Workers.QueueCapacity = 4
	})
	defer g.open()

	stats := m.Update(world.ChunkCoord{}, 2)
	if stats.Submitted != 4 || stats.Deferred != 21 {
		t.Fatalf("expected 4 submitted and 21 deferred, got %+v", stats)
	}
	if got := len(store.Tracked()); got != 4 {
		t.Fatalf("expected 4 tracked coordinates, got %d", got)
	}
}

func TestFullPoolKeepsSubmitTokens(t *testing.T) {
	g := newGate()
	m, store, _ := harness(t, gatedPipeline(g), 1, func(cfg *config.Config) {
		cfg.Workers.QueueCapacity = 2
		cfg.Streaming.SubmitsPerSecond = 0.001
		cfg.Streaming.SubmitBurst = 3
	})

	stats := m.Update(world.ChunkCoord{}, 1)
	if stats.Submitted != 2 || stats.Deferred != 7 {
		t.Fatalf("expected 2 submitted and 7 deferred, got %+v", stats)
	}

	g.open()
	waitFor(t, "first installs", func() bool {
		m.Drain(0)
		return store.Len() == 2
	})

	stats = m.Update(world.ChunkCoord{}, 1)
	if stats.Submitted != 1 || stats.Deferred != 6 {
		t.Fatalf("expected the third token to survive the full pool, got %+v", stats)
	}
}

type recordingPool struct {
	jobs []worker.Job
}

func (p *recordingPool) Submit(job worker.Job) worker.SubmitStatus {
	p.jobs = append(p.jobs, job)
	return worker.Accepted
}

func (p *recordingPool) Cancel(world.ChunkCoord) bool { return false }
func (p *recordingPool) Poll(int) []worker.Result { return nil }
func (p *recordingPool) Running() map[world.ChunkCoord]struct{} { return nil }
func (p *recordingPool) Capacity() int { return 1 << 20 }
func (p *recordingPool) Outstanding() int { return len(p.jobs) }

func TestJobPriorityFollowsWindowRings(t *testing.T) {
	pool := &recordingPool{}
	m := NewManager(world.NewStore(testDim), pool, nil, config.Default(), nil)
	center := world.ChunkCoord{X: 2, Z: -3}
	m.Update(center, 4)

	if len(pool.jobs) != 81 {
		t.Fatalf("expected 81 jobs, got %d", len(pool.jobs))
	}
	// Offset (3,3) is on ring 3 yet farther in Euclidean terms than (4,0) on ring 4.
	for _, a := range pool.jobs {
		for _, b := range pool.jobs {
			if a.Coord.Chebyshev(center) < b.Coord.Chebyshev(center) && a.Priority >= b.Priority {
				t.Fatalf("%v (priority %d) should precede %v (priority %d)", a.Coord, a.Priority, b.Coord, b.Priority)
			}
		}
	}
}
