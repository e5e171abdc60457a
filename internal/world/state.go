package world

// ChunkState tracks where a chunk coordinate sits in the streaming lifecycle.
type ChunkState uint8

const (
	StateEmpty ChunkState = iota
	StateQueued
	StateGenerating
	StateReadyToInstall
	StateResident
	StateEvicting
)

func (s ChunkState) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateQueued:
		return "QUEUED"
	case StateGenerating:
		return "GENERATING"
	case StateReadyToInstall:
		return "READY_TO_INSTALL"
	case StateResident:
		return "RESIDENT"
	case StateEvicting:
		return "EVICTING"
	}
	return "UNKNOWN"
}

// Outstanding reports whether a worker job exists for the state.
func (s ChunkState) Outstanding() bool {
	return s == StateQueued || s == StateGenerating
}

var transitions = map[ChunkState][]ChunkState{
	StateEmpty:          {StateQueued},
	StateQueued:         {StateGenerating, StateReadyToInstall, StateEmpty},
	StateGenerating:     {StateReadyToInstall, StateEmpty},
	StateReadyToInstall: {StateResident, StateEmpty},
	StateResident:       {StateEvicting},
	StateEvicting:       {StateEmpty},
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
// QUEUED may skip straight to READY_TO_INSTALL when a result arrives before
// the main thread observed the job start.
func CanTransition(from, to ChunkState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
