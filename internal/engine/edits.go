package engine

import (
	"sync"

	"voxelstream/internal/world"
)

// Edit asks for the block at Coord to become Block. Light in Block is ignored.
type Edit struct {
	Coord world.BlockCoord
	Block world.Block
}

// editQueue is the one structure other goroutines may touch: input handlers
// push edits, the frame loop drains them.
type editQueue struct {
	mu      sync.Mutex
	pending []Edit
}

func newEditQueue() *editQueue {
	return &editQueue{
		pending: make([]Edit, 0),
	}
}

func (q *editQueue) push(edit Edit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, edit)
}

func (q *editQueue) drain(limit int) []Edit {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	if limit <= 0 || limit >= len(q.pending) {
		batch := append([]Edit(nil), q.pending...)
		q.pending = q.pending[:0]
		return batch
	}
	batch := append([]Edit(nil), q.pending[:limit]...)
	q.pending = q.pending[limit:]
	return batch
}

func (q *editQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
