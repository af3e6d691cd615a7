package capture

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

const statsLogInterval = 5 * time.Second

// Source produces frames at the capture device's native rate and exposes
// only the most recent one: a single-slot, latest-wins handoff. Consumers
// that fall behind simply skip intermediate frames; there is no queue.
type Source interface {
	Start()
	Stop()
	Latest() Frame
	Running() bool
	Stats() Stats
}

// ScreenSource captures the screen (or a selection of it) in a background
// producer goroutine. Capture unavailability is a pause condition: grabs that
// fail are counted and retried, never fatal.
type ScreenSource struct {
	running      atomic.Bool
	latest       atomic.Pointer[Frame]
	selFn        func() *image.Rectangle // optional capture region
	logger       *slog.Logger
	captures     atomic.Uint64
	skipped      atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
}

// NewScreenSource constructs a screen source. selectionFn may be nil for
// full-screen capture.
func NewScreenSource(logger *slog.Logger, selectionFn func() *image.Rectangle) *ScreenSource {
	return &ScreenSource{selFn: selectionFn, logger: logger}
}

// SetSelectionProvider replaces the capture region callback.
func (s *ScreenSource) SetSelectionProvider(fn func() *image.Rectangle) { s.selFn = fn }

// Latest returns the most recent frame, or a zero Frame before first capture.
func (s *ScreenSource) Latest() Frame {
	snap := s.latest.Load()
	if snap == nil {
		return Frame{}
	}
	return *snap
}

// Running reports whether the producer loop is active.
func (s *ScreenSource) Running() bool { return s.running.Load() }

// Stats returns capture counters and the age of the latest frame.
func (s *ScreenSource) Stats() Stats {
	captures := s.captures.Load()
	skipped := s.skipped.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	avgMicros := 0.0
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	snapshot := s.Latest()
	age := time.Duration(0)
	if !snapshot.CapturedAt.IsZero() {
		age = time.Since(snapshot.CapturedAt)
	}
	return Stats{
		Captures:         captures,
		Skipped:          skipped,
		AvgCapture:       avg,
		AvgCaptureMicros: avgMicros,
		LastCapture:      snapshot.CapturedAt,
		LatestFrameAge:   age,
		Sequence:         snapshot.Sequence,
	}
}

// Start launches the producer loop.
func (s *ScreenSource) Start() {
	if s.running.Load() {
		return
	}
	s.running.Store(true)
	go s.loop()
}

// Stop halts the producer. The latest frame stays readable.
func (s *ScreenSource) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
}

func (s *ScreenSource) loop() {
	logTicker := time.NewTicker(statsLogInterval)
	defer logTicker.Stop()
	for s.running.Load() {
		start := time.Now()
		var img *image.RGBA

		if s.selFn != nil {
			if r := s.selFn(); r != nil && !r.Empty() {
				if out, err := GrabSelection(*r); err == nil {
					img = out
				} else if s.logger != nil {
					s.logger.Error("capture selection", "error", err)
				}
			}
		}

		if img == nil {
			if full, err := Grab(); err != nil {
				if s.logger != nil {
					s.logger.Error("capture full", "error", err)
				}
			} else {
				img = full
			}
		}

		if img == nil {
			s.skipped.Add(1)
			time.Sleep(1 * time.Millisecond)
			continue
		}

		elapsed := time.Since(start)
		s.captureNanos.Add(uint64(elapsed.Nanoseconds()))
		s.captures.Add(1)
		seq := s.sequence.Add(1)
		s.latest.Store(&Frame{Image: pooledCopy(img), CapturedAt: time.Now(), Sequence: seq})

		select {
		case <-logTicker.C:
			s.logStats()
		default:
		}

		time.Sleep(200 * time.Microsecond)
	}
}

func (s *ScreenSource) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"avg_capture", stats.AvgCapture,
		"age", stats.LatestFrameAge,
	)
}

var _ Source = (*ScreenSource)(nil)
