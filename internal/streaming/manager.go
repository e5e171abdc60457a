// Package streaming keeps the resident chunk set centred on the observer:
// it submits generation jobs for missing chunks, evicts chunks that left
// the window and installs finished results.
package streaming

import (
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"voxelstream/internal/config"
	"voxelstream/internal/worker"
	"voxelstream/internal/world"
)

// JobPool is the part of the worker pool the manager drives.
type JobPool interface {
	Submit(job worker.Job) worker.SubmitStatus
	Cancel(c world.ChunkCoord) bool
	Poll(limit int) []worker.Result
	Running() map[world.ChunkCoord]struct{}
	Capacity() int
	Outstanding() int
}

// DesiredSet returns every coordinate within Chebyshev distance radius of
// center, nearest first. Ties break on Euclidean distance, then X, then Z.
func DesiredSet(center world.ChunkCoord, radius int) []world.ChunkCoord {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]world.ChunkCoord, 0, side*side)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			out = append(out, center.Add(dx, dz))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ca, cb := a.Chebyshev(center), b.Chebyshev(center); ca != cb {
			return ca < cb
		}
		if da, db := a.DistanceSq(center), b.DistanceSq(center); da != db {
			return da < db
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return out
}

// UpdateStats describes one window update.
type UpdateStats struct {
	Desired   int
	Submitted int
	Revived   int
	Deferred  int
	Cancelled int
	Evicted   []world.ChunkCoord
}

// DrainStats describes one result drain.
type DrainStats struct {
	Installed []world.ChunkCoord
	Discarded int
	Failed    int
}

// Manager diffs the desired window against the store. It runs on the main
// thread together with the store it mutates.
type Manager struct {
	store   *world.Store
	pool    JobPool
	buffers *world.BufferPool
	seed    int64
	limiter *rate.Limiter
	logger  *log.Logger
	verbose bool

	center world.ChunkCoord
	radius int
	window map[world.ChunkCoord]struct{}
}

func NewManager(store *world.Store, pool JobPool, buffers *world.BufferPool, cfg *config.Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if buffers == nil {
		buffers = world.NewBufferPool(store.Dimensions())
	}
	limit := rate.Inf
	burst := cfg.Streaming.SubmitBurst
	if cfg.Streaming.SubmitsPerSecond > 0 {
		limit = rate.Limit(cfg.Streaming.SubmitsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Manager{
		store:   store,
		pool:    pool,
		buffers: buffers,
		seed:    cfg.World.Seed,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		verbose: cfg.Engine.Verbose,
		radius:  cfg.Streaming.Radius,
		window:  make(map[world.ChunkCoord]struct{}),
	}
}

func (m *Manager) Center() world.ChunkCoord {
	return m.center
}

func (m *Manager) Radius() int {
	return m.radius
}

// Wanted reports whether c is inside the current window.
func (m *Manager) Wanted(c world.ChunkCoord) bool {
	_, ok := m.window[c]
	return ok
}

// Update recentres the window on observer and issues the resulting job,
// eviction and cancellation work.
func (m *Manager) Update(observer world.ChunkCoord, radius int) UpdateStats {
	m.center, m.radius = observer, radius
	desired := DesiredSet(observer, radius)
	m.window = make(map[world.ChunkCoord]struct{}, len(desired))
	for _, c := range desired {
		m.window[c] = struct{}{}
	}
	stats := UpdateStats{Desired: len(desired)}

	running := m.pool.Running()
	for _, c := range m.store.InState(world.StateQueued) {
		if _, ok := running[c]; ok {
			if err := m.store.MarkGenerating(c); err != nil {
				m.logger.Printf("mark %v generating: %v", c, err)
			}
		}
	}

	for _, c := range m.store.Tracked() {
		if m.Wanted(c) {
			continue
		}
		switch m.store.State(c) {
		case world.StateResident:
			chunk, err := m.store.Evict(c)
			if err != nil {
				m.logger.Printf("evict %v: %v", c, err)
				continue
			}
			m.buffers.Put(chunk)
			stats.Evicted = append(stats.Evicted, c)
		case world.StateQueued:
			if m.pool.Cancel(c) {
				if err := m.store.Forget(c); err != nil {
					m.logger.Printf("forget %v: %v", c, err)
				}
				stats.Cancelled++
				continue
			}
			fallthrough
		case world.StateGenerating:
			if _, err := m.store.Cancel(c); err != nil {
				m.logger.Printf("cancel %v: %v", c, err)
				continue
			}
			stats.Cancelled++
		}
	}

	// Capacity is checked before a limiter token is spent. Poll and Submit
	// both run on this goroutine, so free stays exact for the loop.
	free := m.pool.Capacity() - m.pool.Outstanding()
	blocked := false
	for i, c := range desired {
		if m.store.State(c) != world.StateEmpty {
			continue
		}
		if m.store.Revive(c) {
			stats.Revived++
			continue
		}
		if blocked || free <= 0 || !m.limiter.Allow() {
			stats.Deferred++
			continue
		}
		nonce := uuid.New()
		// The desired index shares the window's ordering.
		job := worker.Job{Coord: c, Seed: m.seed, Priority: i, Nonce: nonce}
		switch status := m.pool.Submit(job); status {
		case worker.Accepted:
		case worker.RejectedFull, worker.RejectedClosed:
			blocked = true
			stats.Deferred++
			continue
		default:
			m.logger.Printf("submit %v rejected: %s", c, status)
			continue
		}
		if err := m.store.MarkQueued(c, nonce); err != nil {
			m.pool.Cancel(c)
			m.logger.Printf("queue %v: %v", c, err)
			continue
		}
		free--
		stats.Submitted++
	}
	if m.verbose && (stats.Submitted > 0 || len(stats.Evicted) > 0 || stats.Cancelled > 0) {
		m.logger.Printf("window %v r=%d: submitted %d, revived %d, evicted %d, cancelled %d, deferred %d",
			observer, radius, stats.Submitted, stats.Revived, len(stats.Evicted), stats.Cancelled, stats.Deferred)
	}
	return stats
}

// Drain installs at most limit finished results. Results for cancelled or
// superseded jobs are dropped; failed jobs return their coordinate to EMPTY
// so the next Update retries it.
func (m *Manager) Drain(limit int) DrainStats {
	var stats DrainStats
	for _, r := range m.pool.Poll(limit) {
		if m.store.Cancelled(r.Coord, r.Nonce) {
			m.store.ClearCancelled(r.Coord)
			m.release(r.Chunk)
			stats.Discarded++
			continue
		}
		nonce, tracked := m.store.Nonce(r.Coord)
		if !tracked || nonce != r.Nonce || !m.store.State(r.Coord).Outstanding() {
			m.release(r.Chunk)
			stats.Discarded++
			continue
		}
		if r.Err != nil {
			stats.Failed++
			m.logger.Printf("chunk %v generation failed: %v", r.Coord, r.Err)
			m.release(r.Chunk)
			if err := m.store.Forget(r.Coord); err != nil {
				m.logger.Printf("forget %v: %v", r.Coord, err)
			}
			continue
		}
		if err := m.store.Install(r.Coord, r.Nonce, r.Chunk); err != nil {
			if !errors.Is(err, world.ErrStaleResult) {
				m.logger.Printf("install %v: %v", r.Coord, err)
				_ = m.store.Forget(r.Coord)
			}
			m.release(r.Chunk)
			stats.Discarded++
			continue
		}
		stats.Installed = append(stats.Installed, r.Coord)
	}
	return stats
}

func (m *Manager) release(chunk *world.Chunk) {
	if chunk != nil {
		m.buffers.Put(chunk)
	}
}
