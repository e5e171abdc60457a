package world

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func installChunk(t *testing.T, store *Store, c ChunkCoord) *Chunk {
	t.Helper()
	nonce := uuid.New()
	if err := store.MarkQueued(c, nonce); err != nil {
		t.Fatalf("mark queued %v: %v", c, err)
	}
	chunk := NewChunk(c, store.Dimensions())
	if err := store.Install(c, nonce, chunk); err != nil {
		t.Fatalf("install %v: %v", c, err)
	}
	return chunk
}

func TestStoreGetBlockReturnsAirOutsideLoadedWorld(t *testing.T) {
	store := NewStore(testDim)
	if got := store.Block(BlockCoord{X: 5, Y: 5, Z: 5}); got != Air {
		t.Fatalf("expected air for unloaded chunk, got %+v", got)
	}
	chunk := installChunk(t, store, ChunkCoord{})
	chunk.SetLocalBlock(5, 5, 5, NewBlock(BlockStone))
	if got := store.Block(BlockCoord{X: 5, Y: 5, Z: 5}); got.Type != BlockStone {
		t.Fatalf("expected stone, got %+v", got)
	}
	for _, y := range []int{-1, testDim.Height, 1 << 20} {
		if got := store.Block(BlockCoord{X: 5, Y: y, Z: 5}); got != Air {
			t.Fatalf("y=%d: expected air sentinel, got %+v", y, got)
		}
	}
}

func TestStoreSetBlockMarksChunkAndBorderNeighbours(t *testing.T) {
	store := NewStore(testDim)
	center := installChunk(t, store, ChunkCoord{})
	west := installChunk(t, store, ChunkCoord{X: -1})
	east := installChunk(t, store, ChunkCoord{X: 1})
	for _, c := range []*Chunk{center, west, east} {
		c.NeedsRemesh = false
	}

	change, ok := store.SetBlock(BlockCoord{X: 0, Y: 3, Z: 4}, NewBlock(BlockGlass))
	if !ok || !change.Changed() {
		t.Fatalf("expected change, got %+v ok=%v", change, ok)
	}
	if !center.NeedsRemesh || !west.NeedsRemesh {
		t.Fatalf("expected center and west to need remesh")
	}
	if east.NeedsRemesh {
		t.Fatalf("east chunk does not share the edited border")
	}

	if _, ok := store.SetBlock(BlockCoord{X: 100, Y: 3, Z: 4}, NewBlock(BlockGlass)); ok {
		t.Fatalf("expected unloaded write to be a no-op")
	}
	if _, ok := store.SetBlock(BlockCoord{X: 1, Y: -4, Z: 4}, NewBlock(BlockGlass)); ok {
		t.Fatalf("expected out-of-range write to be a no-op")
	}
}

func TestStoreSetBlockKeepsNaturalTagForSameType(t *testing.T) {
	store := NewStore(testDim)
	chunk := installChunk(t, store, ChunkCoord{})
	chunk.SetLocalBlock(1, 1, 1, NaturalBlock(BlockLeaves))
	change, _ := store.SetBlock(BlockCoord{X: 1, Y: 1, Z: 1}, NewBlock(BlockLeaves))
	if !change.After.Natural() {
		t.Fatalf("natural tag should survive same-type edit")
	}
	change, _ = store.SetBlock(BlockCoord{X: 1, Y: 1, Z: 1}, NewBlock(BlockStone))
	if change.After.Natural() {
		t.Fatalf("natural tag should not carry across types")
	}
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore(testDim)
	c := ChunkCoord{X: 2, Z: 3}
	nonce := uuid.New()

	if err := store.MarkQueued(c, nonce); err != nil {
		t.Fatalf("mark queued: %v", err)
	}
	if err := store.MarkQueued(c, uuid.New()); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected duplicate queue to fail, got %v", err)
	}
	if err := store.MarkGenerating(c); err != nil {
		t.Fatalf("mark generating: %v", err)
	}
	if err := store.Install(c, uuid.New(), NewChunk(c, testDim)); !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected nonce mismatch to be stale, got %v", err)
	}
	if err := store.Install(c, nonce, NewChunk(c, testDim)); err != nil {
		t.Fatalf("install: %v", err)
	}
	if got := store.State(c); got != StateResident {
		t.Fatalf("expected resident, got %s", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one resident chunk")
	}
	evicted, err := store.Evict(c)
	if err != nil || evicted == nil {
		t.Fatalf("evict: %v", err)
	}
	if got := store.State(c); got != StateEmpty {
		t.Fatalf("expected empty after evict, got %s", got)
	}
	if _, err := store.Evict(c); err == nil {
		t.Fatalf("expected second evict to fail")
	}
}

func TestStoreCancelAndRevive(t *testing.T) {
	store := NewStore(testDim)
	c := ChunkCoord{X: 10, Z: 10}
	nonce := uuid.New()
	if err := store.MarkQueued(c, nonce); err != nil {
		t.Fatalf("mark queued: %v", err)
	}
	got, err := store.Cancel(c)
	if err != nil || got != nonce {
		t.Fatalf("cancel: nonce=%s err=%v", got, err)
	}
	if store.State(c) != StateEmpty {
		t.Fatalf("cancelled coordinate should be empty")
	}
	if !store.Cancelled(c, nonce) {
		t.Fatalf("expected cancellation record")
	}
	if err := store.MarkQueued(c, uuid.New()); err == nil {
		t.Fatalf("queueing over an in-flight cancelled job must fail")
	}
	if !store.Revive(c) {
		t.Fatalf("expected revive to succeed")
	}
	if store.State(c) != StateGenerating || store.HasCancelled(c) {
		t.Fatalf("revive should restore GENERATING and clear the cancellation")
	}
	if err := store.Install(c, nonce, NewChunk(c, testDim)); err != nil {
		t.Fatalf("install revived job: %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]ChunkState{
		{StateEmpty, StateQueued},
		{StateQueued, StateGenerating},
		{StateQueued, StateEmpty},
		{StateGenerating, StateReadyToInstall},
		{StateGenerating, StateEmpty},
		{StateReadyToInstall, StateResident},
		{StateResident, StateEvicting},
		{StateEvicting, StateEmpty},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}
	denied := [][2]ChunkState{
		{StateEmpty, StateResident},
		{StateResident, StateEmpty},
		{StateEvicting, StateResident},
		{StateGenerating, StateQueued},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be rejected", tr[0], tr[1])
		}
	}
}

func TestNeedsRemeshOrdersNearestFirst(t *testing.T) {
	store := NewStore(testDim)
	for _, c := range []ChunkCoord{{X: 3}, {X: 0}, {X: 1, Z: 1}} {
		installChunk(t, store, c).NeedsRemesh = true
	}
	got := store.NeedsRemesh(ChunkCoord{})
	want := []ChunkCoord{{X: 0}, {X: 1, Z: 1}, {X: 3}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSavePreviewWritesPNG(t *testing.T) {
	store := NewStore(testDim)
	chunk := installChunk(t, store, ChunkCoord{})
	chunk.SetLocalBlock(0, 0, 0, NewBlock(BlockGrass).WithLight(15))
	path := filepath.Join(t.TempDir(), "preview", "map.png")
	if err := SavePreview(store, path, 4); err != nil {
		t.Fatalf("save preview: %v", err)
	}
	img, err := RenderPreview(store, 2)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if img.Bounds().Dx() != testDim.Width*2 || img.Bounds().Dy() != testDim.Depth*2 {
		t.Fatalf("unexpected preview size %v", img.Bounds())
	}
}

func TestChangeSetKeepsEarliestBefore(t *testing.T) {
	set := NewChangeSet(testDim)
	coord := BlockCoord{X: 17, Y: 2, Z: 1}
	set.Add(BlockChange{Coord: coord, Before: Air, After: NewBlock(BlockStone)})
	set.Add(BlockChange{Coord: coord, Before: NewBlock(BlockStone), After: NewBlock(BlockDirt)})
	changes := set.Changes()
	if len(changes) != 1 || changes[0].Before != Air || changes[0].After.Type != BlockDirt {
		t.Fatalf("unexpected change set contents %+v", changes)
	}
	if dirty := set.DirtyChunks(); len(dirty) != 1 || dirty[0] != (ChunkCoord{X: 1}) {
		t.Fatalf("unexpected dirty chunks %v", dirty)
	}
}
