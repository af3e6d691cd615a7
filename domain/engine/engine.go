// Package engine runs the analysis pipeline: one consumer goroutine that
// turns the latest captured frame into similarity scores, uniformity metrics,
// detector transitions, arbitrated load events and accumulated removed time.
package engine

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/soocke/load-curtain-go/capture"
	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/detect"
	"github.com/soocke/load-curtain-go/domain/frame"
	"github.com/soocke/load-curtain-go/domain/load"
	"github.com/soocke/load-curtain-go/domain/session"
	"github.com/soocke/load-curtain-go/domain/similarity"
	"github.com/soocke/load-curtain-go/domain/stats"
	"github.com/soocke/load-curtain-go/domain/template"
)

// idleSleep paces the consumer when no new frame is available.
const idleSleep = 1 * time.Millisecond

// FrameSource supplies the most recently captured frame. The engine consumes
// it latest-wins: frames superseded before analysis begins are never seen.
type FrameSource interface {
	Latest() capture.Frame
}

// EngineStats counts consumer-side cycle outcomes.
type EngineStats struct {
	Cycles  uint64 // frames fully analyzed
	Stalls  uint64 // degraded frames skipped
	Dropped uint64 // frames dropped for non-monotonic timestamps
}

// Engine owns all detector and accumulator state; nothing else mutates it.
// Threshold configuration is read as one snapshot per cycle from the store.
type Engine struct {
	logger *slog.Logger
	store  *config.Store
	src    FrameSource
	sinks  Sinks

	pre       *frame.Preprocessor
	sim       *similarity.Engine
	order     []load.Type
	endScreen bool
	detectors map[load.Type]*detect.Plateau
	black     *detect.BlackScreen
	arb       *detect.Arbitrator
	sess      *session.Session

	running atomic.Bool
	ended   atomic.Bool
	done    chan struct{}

	lastSeq     uint64
	lastAt      time.Time
	timerPaused bool

	cycles  atomic.Uint64
	stalls  atomic.Uint64
	dropped atomic.Uint64
}

// New wires an engine from its collaborators. bundle must already be
// validated by template.LoadBundle.
func New(logger *slog.Logger, store *config.Store, src FrameSource, bundle *template.Bundle, sinks Sinks) *Engine {
	e := &Engine{
		logger:    logger,
		store:     store,
		src:       src,
		sinks:     sinks,
		pre:       frame.NewPreprocessor(logger),
		sim:       similarity.NewEngine(bundle),
		order:     bundle.Types(),
		endScreen: len(bundle.Variants(load.EndScreen)) > 0,
		detectors: make(map[load.Type]*detect.Plateau),
		black:     detect.NewBlackScreen(logger),
		arb:       detect.NewArbitrator(logger),
	}
	for _, t := range e.order {
		e.detectors[t] = detect.NewPlateau(t, logger)
	}
	e.sess = session.New(store.Snapshot(), time.Now(), logger)
	return e
}

// Session returns the current session.
func (e *Engine) Session() *session.Session { return e.sess }

// Stats returns consumer cycle counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Cycles:  e.cycles.Load(),
		Stalls:  e.stalls.Load(),
		Dropped: e.dropped.Load(),
	}
}

// Ended reports whether the engine stopped itself on an end-screen match.
func (e *Engine) Ended() bool { return e.ended.Load() }

// Start launches the analysis consumer. A finished session cannot be
// restarted; call Reset first.
func (e *Engine) Start() {
	if e.running.Load() || e.sess.Finished() {
		return
	}
	e.done = make(chan struct{})
	e.running.Store(true)
	go func() {
		defer func() {
			if r := recover(); r != nil && e.logger != nil {
				e.logger.Error("engine panic", "error", r, "stack", string(debug.Stack()))
			}
		}()
		e.loop()
	}()
}

// Stop halts the consumer cooperatively: the current cycle completes, any
// in-flight load is finalized with the last-known frame as implicit release,
// and the session freezes. Blocks until the loop exits, including when the
// loop already stopped itself on an end screen.
func (e *Engine) Stop() {
	if e.done == nil {
		return
	}
	e.running.Store(false)
	<-e.done
	e.done = nil
}

// Reset discards the frozen session and begins a fresh one. Only valid while
// stopped.
func (e *Engine) Reset() {
	if e.running.Load() {
		return
	}
	for _, d := range e.detectors {
		d.Reset()
	}
	e.black.Reset()
	e.arb.Reset()
	e.sim.ResetMax()
	e.lastSeq = 0
	e.lastAt = time.Time{}
	e.timerPaused = false
	e.ended.Store(false)
	e.sess = session.New(e.store.Snapshot(), time.Now(), e.logger)
}

func (e *Engine) loop() {
	var prev *capture.Frame
	for e.running.Load() {
		f := e.src.Latest()
		if f.Image == nil || f.Sequence == e.lastSeq {
			time.Sleep(idleSleep)
			continue
		}
		e.cycle(f)
		if prev != nil && prev.Sequence != f.Sequence {
			capture.RecycleFrame(prev.Image)
		}
		prev = &f
	}
	e.finish()
	close(e.done)
}

// cycle analyzes one frame end to end with a single config snapshot.
func (e *Engine) cycle(f capture.Frame) {
	cfg := e.store.Snapshot()

	if !e.lastAt.IsZero() && !f.CapturedAt.After(e.lastAt) {
		// Misbehaving source; drop without advancing detector state.
		e.dropped.Add(1)
		e.lastSeq = f.Sequence
		if e.logger != nil {
			e.logger.Warn("non-monotonic frame timestamp dropped", "at", f.CapturedAt, "last", e.lastAt)
		}
		return
	}

	p, err := e.pre.Prepare(f.Image, f.CapturedAt, f.Sequence, cfg)
	if err != nil {
		e.lastSeq = f.Sequence
		if errors.Is(err, frame.ErrDegraded) {
			e.stalls.Add(1)
			e.publishStalled(f)
			return
		}
		if e.logger != nil {
			e.logger.Error("preprocess", "error", err)
		}
		return
	}
	e.lastSeq = f.Sequence
	e.lastAt = f.CapturedAt

	scores := e.sim.ScoreAll(p, cfg.SimilarityMethod)
	metrics := stats.Measure(p)

	if e.endScreen {
		if s := e.sim.Score(p, load.EndScreen, cfg.SimilarityMethod); s >= cfg.EndScreenThreshold {
			e.ended.Store(true)
			e.running.Store(false)
			if e.logger != nil {
				e.logger.Info("end screen detected, stopping tracking", "score", s)
			}
		}
	}

	var intervals []load.Interval
	for _, t := range e.order {
		if iv := e.detectors[t].Observe(scores[t], f.CapturedAt, cfg.TypeConfig(t)); iv != nil {
			intervals = append(intervals, *iv)
		}
	}
	if iv := e.black.Observe(metrics, f.CapturedAt, cfg); iv != nil {
		intervals = append(intervals, *iv)
	}

	allIdle := e.black.State() == detect.BlackIdle
	anyConfirmed := e.black.State() == detect.BlackConfirmed
	for _, t := range e.order {
		st := e.detectors[t].State()
		if st != detect.PlateauIdle {
			allIdle = false
		}
		if st == detect.PlateauConfirmed || st == detect.PlateauReleasing {
			anyConfirmed = true
		}
	}

	if anyConfirmed && !e.timerPaused {
		e.timerPaused = true
		if e.sinks.Timer != nil {
			e.sinks.Timer.Pause(f.CapturedAt)
		}
	}

	events := e.arb.Observe(intervals, allIdle, f.CapturedAt, cfg)
	e.commit(events, cfg)
	e.cycles.Add(1)

	e.publish(CycleSnapshot{
		At:           f.CapturedAt,
		Sequence:     f.Sequence,
		Scores:       scores,
		Maxima:       e.sim.Maxima(),
		Metrics:      metrics,
		Detectors:    e.detectorStates(),
		Black:        e.black.State(),
		LoadActive:   anyConfirmed || e.arb.Active(),
		TotalRemoved: e.sess.TotalRemoved(),
		EventCount:   e.sess.Count(),
	})
}

func (e *Engine) commit(events []load.Event, cfg *config.Config) {
	for _, ev := range events {
		committed, ok := e.sess.Commit(ev, cfg)
		if !ok {
			continue
		}
		if e.sinks.Events != nil {
			e.sinks.Events.PublishEvent(committed)
		}
		if e.timerPaused {
			e.timerPaused = false
			if e.sinks.Timer != nil {
				e.sinks.Timer.Resume(committed.End)
			}
		}
	}
}

// finish flushes detectors and the arbitrator using the last-known frame time
// as an implicit release, then freezes the session.
func (e *Engine) finish() {
	now := e.lastAt
	if now.IsZero() {
		now = time.Now()
	}
	var intervals []load.Interval
	for _, t := range e.order {
		if iv := e.detectors[t].Flush(now); iv != nil {
			intervals = append(intervals, *iv)
		}
	}
	if iv := e.black.Flush(now); iv != nil {
		intervals = append(intervals, *iv)
	}
	cfg := e.store.Snapshot()
	events := e.arb.Observe(intervals, true, now.Add(cfg.FusionTolerance()+time.Nanosecond), cfg)
	events = append(events, e.arb.Flush()...)
	e.commit(events, cfg)
	if e.timerPaused {
		e.timerPaused = false
		if e.sinks.Timer != nil {
			e.sinks.Timer.Resume(now)
		}
	}
	e.sess.Finish(now)
}

func (e *Engine) publishStalled(f capture.Frame) {
	if e.logger != nil {
		e.logger.Warn("capture stalled: degraded frame skipped", "sequence", f.Sequence)
	}
	e.publish(CycleSnapshot{
		At:           f.CapturedAt,
		Sequence:     f.Sequence,
		Stalled:      true,
		Detectors:    e.detectorStates(),
		Black:        e.black.State(),
		TotalRemoved: e.sess.TotalRemoved(),
		EventCount:   e.sess.Count(),
	})
}

func (e *Engine) publish(snap CycleSnapshot) {
	if e.sinks.Dashboard != nil {
		e.sinks.Dashboard.PublishCycle(snap)
	}
}

func (e *Engine) detectorStates() map[load.Type]detect.PlateauState {
	out := make(map[load.Type]detect.PlateauState, len(e.order))
	for _, t := range e.order {
		out[t] = e.detectors[t].State()
	}
	return out
}
