// Package worker runs chunk generation jobs on a fixed set of goroutines.
// Each job owns its chunk buffer until the result is polled; workers never
// touch the chunk store.
package worker

import (
	"container/heap"
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"voxelstream/internal/world"
)

// Job asks for one chunk. Priority is the distance to the observer when the
// job was submitted; lower runs first.
type Job struct {
	Coord    world.ChunkCoord
	Seed     int64
	Priority int
	Nonce    uuid.UUID
}

// Result carries a finished (or failed) chunk back to the main thread.
type Result struct {
	Coord   world.ChunkCoord
	Chunk   *world.Chunk
	Nonce   uuid.UUID
	Err     error
	Elapsed time.Duration
}

// Pipeline produces a chunk for a job. Implementations must only touch the
// buffer they allocate.
type Pipeline interface {
	Run(ctx context.Context, job Job) (*world.Chunk, error)
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, job Job) (*world.Chunk, error)

func (f PipelineFunc) Run(ctx context.Context, job Job) (*world.Chunk, error) {
	return f(ctx, job)
}

type SubmitStatus int

const (
	Accepted SubmitStatus = iota
	RejectedDuplicate
	RejectedFull
	RejectedClosed
)

func (s SubmitStatus) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case RejectedDuplicate:
		return "duplicate"
	case RejectedFull:
		return "full"
	case RejectedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Options struct {
	Workers       int
	QueueCapacity int
	Logger        *log.Logger
}

// Stats are cumulative pool counters.
type Stats struct {
	Submitted int
	Completed int
	Failed    int
	Cancelled int
	Queued    int
	Running   int
	Undrained int
}

// Pool is a priority job queue drained by a fixed set of workers. The
// queue, the running set and the result list share one mutex; idle workers
// wait on a condition variable.
type Pool struct {
	pipeline Pipeline
	logger   *log.Logger
	capacity int
	workers  int

	mu        sync.Mutex
	cond      *sync.Cond
	queue     jobQueue
	queued    map[world.ChunkCoord]*queuedJob
	running   map[world.ChunkCoord]uuid.UUID
	results   []Result
	undrained map[world.ChunkCoord]struct{}
	seq       uint64
	closed    bool
	stats     Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(pipeline Pipeline, opts Options) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = 512
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		pipeline:  pipeline,
		logger:    logger,
		capacity:  capacity,
		workers:   workers,
		queued:    make(map[world.ChunkCoord]*queuedJob),
		running:   make(map[world.ChunkCoord]uuid.UUID),
		undrained: make(map[world.ChunkCoord]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) Capacity() int {
	return p.capacity
}

// Submit enqueues job unless its coordinate already has a queued, running
// or undrained job, the pool is at capacity, or the pool is closed.
func (p *Pool) Submit(job Job) SubmitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return RejectedClosed
	}
	if p.trackedLocked(job.Coord) {
		return RejectedDuplicate
	}
	if p.outstandingLocked() >= p.capacity {
		return RejectedFull
	}
	if job.Nonce == uuid.Nil {
		job.Nonce = uuid.New()
	}
	p.seq++
	item := &queuedJob{job: job, seq: p.seq}
	heap.Push(&p.queue, item)
	p.queued[job.Coord] = item
	p.stats.Submitted++
	p.cond.Signal()
	return Accepted
}

func (p *Pool) trackedLocked(c world.ChunkCoord) bool {
	if _, ok := p.queued[c]; ok {
		return true
	}
	if _, ok := p.running[c]; ok {
		return true
	}
	_, ok := p.undrained[c]
	return ok
}

func (p *Pool) outstandingLocked() int {
	return len(p.queued) + len(p.running) + len(p.undrained)
}

// Cancel removes a job that no worker has picked up yet. It reports false
// when the job is running, finished or unknown.
func (p *Pool) Cancel(c world.ChunkCoord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.queued[c]
	if !ok {
		return false
	}
	heap.Remove(&p.queue, item.index)
	delete(p.queued, c)
	p.stats.Cancelled++
	return true
}

// Poll returns up to limit finished results without blocking. limit <= 0
// returns everything available.
func (p *Pool) Poll(limit int) []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return nil
	}
	n := len(p.results)
	if limit > 0 && limit < n {
		n = limit
	}
	batch := append([]Result(nil), p.results[:n]...)
	p.results = append(p.results[:0], p.results[n:]...)
	for _, r := range batch {
		delete(p.undrained, r.Coord)
	}
	return batch
}

// Running returns a snapshot of the coordinates being generated.
func (p *Pool) Running() map[world.ChunkCoord]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[world.ChunkCoord]struct{}, len(p.running))
	for c := range p.running {
		out[c] = struct{}{}
	}
	return out
}

// Pending returns the number of queued, not yet running jobs.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queued)
}

// Outstanding counts jobs that hold a capacity slot.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstandingLocked()
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Queued = len(p.queued)
	s.Running = len(p.running)
	s.Undrained = len(p.undrained)
	return s
}

// Close stops the workers, drops queued jobs and waits for running jobs to
// reach a stage boundary.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.queue = p.queue[:0]
	p.queued = make(map[world.ChunkCoord]*queuedJob)
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		item := heap.Pop(&p.queue).(*queuedJob)
		job := item.job
		delete(p.queued, job.Coord)
		p.running[job.Coord] = job.Nonce
		p.mu.Unlock()

		start := time.Now()
		chunk, err := p.run(job)
		result := Result{Coord: job.Coord, Chunk: chunk, Nonce: job.Nonce, Err: err, Elapsed: time.Since(start)}

		p.mu.Lock()
		delete(p.running, job.Coord)
		if err != nil {
			p.stats.Failed++
		} else {
			p.stats.Completed++
		}
		if !p.closed {
			p.results = append(p.results, result)
			p.undrained[job.Coord] = struct{}{}
		}
		p.mu.Unlock()
	}
}

func (p *Pool) run(job Job) (chunk *world.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("chunk %v generation panicked: %v", job.Coord, r)
			chunk, err = nil, errors.Errorf("generation of %v panicked: %v", job.Coord, r)
		}
	}()
	chunk, err = p.pipeline.Run(p.ctx, job)
	if err == nil && chunk == nil {
		err = errors.Errorf("pipeline returned no chunk for %v", job.Coord)
	}
	return chunk, err
}

type queuedJob struct {
	job   Job
	seq   uint64
	index int
}

type jobQueue []*queuedJob

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool {
	if q[i].job.Priority != q[j].job.Priority {
		return q[i].job.Priority < q[j].job.Priority
	}
	return q[i].seq < q[j].seq
}
func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	item := x.(*queuedJob)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}
