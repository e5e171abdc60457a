package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/faiface/mainthread"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/term"

	"voxelstream/internal/config"
	"voxelstream/internal/delta"
	"voxelstream/internal/engine"
	"voxelstream/internal/mesh"
	"voxelstream/internal/world"
)

type options struct {
	cfgPath      string
	frames       int
	radius       int
	speed        float64
	rainEvery    int
	preview      string
	previewScale int
	exportGLTF   string
	writeConfig  string
	status       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.cfgPath, "config", "", "path to a JSON or YAML configuration file")
	flag.IntVar(&opts.frames, "frames", 600, "frames to run before exiting (0 runs until interrupted)")
	flag.IntVar(&opts.radius, "radius", -1, "override streaming.radius")
	flag.Float64Var(&opts.speed, "speed", 0.5, "observer speed in blocks per frame along +X")
	flag.IntVar(&opts.rainEvery, "rain", 0, "drop a water source above the observer every N frames (0 disables)")
	flag.StringVar(&opts.preview, "preview", "", "write a top-down PNG of the resident set on exit")
	flag.IntVar(&opts.previewScale, "preview-scale", 2, "preview pixels per column")
	flag.StringVar(&opts.exportGLTF, "export-gltf", "", "write the batched meshes as a GLB file on exit")
	flag.StringVar(&opts.writeConfig, "write-config", "", "write the effective configuration to this path")
	flag.BoolVar(&opts.status, "status", true, "show a live status line when stdout is a terminal")
	flag.Parse()

	if _, err := writeConfigFromEnv(opts.cfgPath); err != nil {
		log.Fatalf("sync config: %v", err)
	}
	cfg, err := config.Load(opts.cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if opts.radius >= 0 {
		cfg.Streaming.Radius = opts.radius
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if opts.writeConfig != "" {
		if err := config.Save(cfg, opts.writeConfig); err != nil {
			log.Fatalf("write config: %v", err)
		}
	}

	logger := log.New(log.Writer(), cfg.Engine.LogPrefix, log.LstdFlags|log.Lmicroseconds)
	mainthread.Run(func() {
		if err := run(cfg, opts, logger); err != nil {
			logger.Fatalf("voxelstream exited with error: %v", err)
		}
	})
}

func run(cfg *config.Config, opts options, logger *log.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	status := newStatusLine(opts.status)
	flight := &flight{
		start: mgl32.Vec3{0, float32(cfg.World.ChunkHeight - 1), 0},
		dir:   mgl32.Vec3{1, 0, 0},
		speed: float32(opts.speed),
	}

	var eng *engine.Engine
	onFrame := func(s engine.FrameStats) {
		status.update(s, eng.PoolStats().Queued)
		if opts.rainEvery > 0 && s.Frame%uint64(opts.rainEvery) == 0 {
			pos := flight.current()
			eng.SubmitEdit(engine.Edit{
				Coord: world.BlockCoord{X: int(pos.X()), Y: cfg.World.ChunkHeight - 2, Z: int(pos.Z())},
				Block: world.WaterSource(),
			})
		}
	}

	eng, err := engine.New(cfg, engine.Options{
		Logger:   logger,
		Dispatch: mainthread.Call,
		OnFrame:  onFrame,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	logger.Printf("streaming seed %d with radius %d for %d frames", cfg.World.Seed, cfg.Streaming.Radius, opts.frames)
	runErr := eng.Run(ctx, flight, opts.frames)
	status.finish()
	if runErr != nil && runErr != context.Canceled {
		return runErr
	}

	var exportErr error
	mainthread.Call(func() {
		exportErr = finish(eng, opts, logger)
	})
	return exportErr
}

// finish writes the requested artefacts and reports totals. It must run on
// the engine's thread.
func finish(eng *engine.Engine, opts options, logger *log.Logger) error {
	deltas := eng.FlushDeltas()
	encoded := 0
	for _, d := range deltas {
		data, err := delta.Encode(d)
		if err != nil {
			return err
		}
		encoded += len(data)
	}
	if len(deltas) > 0 {
		logger.Printf("flushed %d chunk deltas (%d bytes encoded)", len(deltas), encoded)
	}

	if opts.preview != "" {
		if err := world.SavePreview(eng.Store(), opts.preview, opts.previewScale); err != nil {
			return err
		}
		logger.Printf("wrote preview %s", opts.preview)
	}
	if opts.exportGLTF != "" {
		batches := eng.Batches()
		if err := mesh.ExportGLB(opts.exportGLTF, batches, eng.Dimensions()); err != nil {
			return err
		}
		logger.Printf("wrote %d batches to %s", len(batches), opts.exportGLTF)
	}

	stats := eng.PoolStats()
	logger.Printf("resident %d chunks; jobs submitted %d, completed %d, failed %d, cancelled %d",
		eng.Store().Len(), stats.Submitted, stats.Completed, stats.Failed, stats.Cancelled)
	for _, timing := range eng.Timings() {
		logger.Print(timing.String())
	}
	return nil
}

// flight moves the observer in a straight line, one step per frame.
type flight struct {
	start mgl32.Vec3
	dir   mgl32.Vec3
	speed float32
	frame int
}

func (f *flight) Position() mgl32.Vec3 {
	pos := f.current()
	f.frame++
	return pos
}

func (f *flight) current() mgl32.Vec3 {
	return f.start.Add(f.dir.Mul(f.speed * float32(f.frame)))
}

// statusLine rewrites one terminal line per frame. It stays silent when
// stdout is not a terminal.
type statusLine struct {
	enabled bool
	fd      int
	last    time.Time
}

func newStatusLine(want bool) *statusLine {
	fd := int(os.Stdout.Fd())
	return &statusLine{enabled: want && term.IsTerminal(fd), fd: fd}
}

func (s *statusLine) update(f engine.FrameStats, queued int) {
	if !s.enabled || time.Since(s.last) < 100*time.Millisecond {
		return
	}
	s.last = time.Now()
	line := fmt.Sprintf("frame %d chunk %v resident %d queued %d installed %d remeshed %d water %d",
		f.Frame, f.Observer, f.Resident, queued, len(f.Drain.Installed), f.Remeshed, f.Water.Pending)
	if width, _, err := term.GetSize(s.fd); err == nil && width > 1 && len(line) >= width {
		line = line[:width-1]
	}
	fmt.Print("\r" + line + strings.Repeat(" ", 4))
}

func (s *statusLine) finish() {
	if s.enabled {
		fmt.Println()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Ensure the process terminates if shutdown stalls.
		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
