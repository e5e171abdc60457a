package engine

import (
	"fmt"
	"strings"
	"time"
)

// StageTiming summarises how long one frame stage took across frames.
type StageTiming struct {
	Name  string
	Last  time.Duration
	Total time.Duration
	Count int64
	Min   time.Duration
	Max   time.Duration
}

func (s StageTiming) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s StageTiming) String() string {
	return fmt.Sprintf("%s last: %.2fms, avg: %.2fms, min: %.2fms, max: %.2fms",
		s.Name, ms(s.Last), ms(s.Average()), ms(s.Min), ms(s.Max))
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// timer keeps named stage timings in first-use order.
type timer struct {
	states map[string]*StageTiming
	names  []string
	now    func() time.Time
}

func newTimer() *timer {
	return &timer{
		states: make(map[string]*StageTiming),
		now:    time.Now,
	}
}

// start begins timing name; calling the returned func records the sample.
func (t *timer) start(name string) func() time.Duration {
	state, ok := t.states[name]
	if !ok {
		t.names = append(t.names, name)
		state = &StageTiming{Name: name}
		t.states[name] = state
	}
	begin := t.now()
	return func() time.Duration {
		elapsed := t.now().Sub(begin)
		state.Last = elapsed
		state.Total += elapsed
		if state.Count == 0 || elapsed < state.Min {
			state.Min = elapsed
		}
		if elapsed > state.Max {
			state.Max = elapsed
		}
		state.Count++
		return elapsed
	}
}

func (t *timer) snapshot() []StageTiming {
	out := make([]StageTiming, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, *t.states[name])
	}
	return out
}

func (t *timer) reset() {
	for _, state := range t.states {
		*state = StageTiming{Name: state.Name}
	}
}

func (t *timer) String() string {
	var b strings.Builder
	for _, s := range t.snapshot() {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}
	return b.String()
}
