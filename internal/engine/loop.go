package engine

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Dispatcher runs fn on the thread that owns the engine and returns once fn
// has finished. mainthread.Call satisfies it.
type Dispatcher func(fn func())

func directDispatch(fn func()) {
	fn()
}

// Observer reports where the viewer is at the start of each frame.
type Observer interface {
	Position() mgl32.Vec3
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func() mgl32.Vec3

func (f ObserverFunc) Position() mgl32.Vec3 {
	return f()
}

type tickerFactory func(time.Duration) (<-chan time.Time, func())

func defaultTickerFactory() tickerFactory {
	return func(d time.Duration) (<-chan time.Time, func()) {
		ticker := time.NewTicker(d)
		return ticker.C, ticker.Stop
	}
}

// Run ticks frames at the configured interval until ctx is cancelled or
// frames frames have run. frames <= 0 runs until cancellation. Returning
// because of the frame limit yields nil.
func (e *Engine) Run(ctx context.Context, obs Observer, frames int) error {
	interval := e.cfg.Engine.FrameInterval.Duration()
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	if e.newTicker == nil {
		e.newTicker = defaultTickerFactory()
	}
	tickerC, stop := e.newTicker(interval)
	defer stop()

	ran := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tickerC:
			pos := obs.Position()
			var stats FrameStats
			e.dispatch(func() {
				stats = e.Frame(pos)
			})
			if e.onFrame != nil {
				e.onFrame(stats)
			}
			ran++
			if frames > 0 && ran >= frames {
				return nil
			}
		}
	}
}
