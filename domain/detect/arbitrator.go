package detect

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
)

// Arbitrator merges candidate intervals from all detectors into finalized
// load events. Temporally overlapping or near-adjacent intervals (gap within
// the fusion tolerance) fuse into one event spanning the earliest onset and
// latest release; under-counting removed time is preferred over
// double-counting. An event is finalized only once no further merge is
// possible: all detectors idle and the pending span out of fusion reach.
//
// Not safe for concurrent use; call Observe from the analysis goroutine only.
type Arbitrator struct {
	logger  *slog.Logger
	pending *pending
}

type pending struct {
	start, end   time.Time
	contributors []load.Interval
}

// NewArbitrator returns an empty arbitrator.
func NewArbitrator(logger *slog.Logger) *Arbitrator {
	return &Arbitrator{logger: logger}
}

// Active reports whether a merged load is pending finalization.
func (a *Arbitrator) Active() bool { return a.pending != nil }

// Observe folds this cycle's completed intervals into the pending event and
// returns any events that can no longer grow. allIdle must reflect every
// detector's state after this cycle.
func (a *Arbitrator) Observe(ivs []load.Interval, allIdle bool, now time.Time, cfg *config.Config) []load.Event {
	tol := cfg.FusionTolerance()
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })

	var out []load.Event
	for _, iv := range ivs {
		switch {
		case a.pending == nil:
			a.open(iv)
		case a.fusable(iv, tol):
			a.merge(iv)
		default:
			out = append(out, a.finalize())
			a.open(iv)
		}
	}
	if a.pending != nil && allIdle && now.Sub(a.pending.end) > tol {
		out = append(out, a.finalize())
	}
	return out
}

// Flush finalizes the pending event unconditionally (cooperative stop).
func (a *Arbitrator) Flush() []load.Event {
	if a.pending == nil {
		return nil
	}
	return []load.Event{a.finalize()}
}

// Reset discards any pending event.
func (a *Arbitrator) Reset() { a.pending = nil }

func (a *Arbitrator) open(iv load.Interval) {
	a.pending = &pending{start: iv.Start, end: iv.End, contributors: []load.Interval{iv}}
}

func (a *Arbitrator) fusable(iv load.Interval, tol time.Duration) bool {
	span := load.Interval{Start: a.pending.start, End: a.pending.end}
	return span.Overlaps(iv, tol)
}

func (a *Arbitrator) merge(iv load.Interval) {
	if iv.Start.Before(a.pending.start) {
		a.pending.start = iv.Start
	}
	if iv.End.After(a.pending.end) {
		a.pending.end = iv.End
	}
	a.pending.contributors = append(a.pending.contributors, iv)
}

func (a *Arbitrator) finalize() load.Event {
	p := a.pending
	a.pending = nil
	sort.Slice(p.contributors, func(i, j int) bool { return p.contributors[i].Start.Before(p.contributors[j].Start) })
	ev := load.Event{
		ID:          uuid.New(),
		Type:        eventType(p.contributors),
		Start:       p.start,
		End:         p.end,
		RawDuration: p.end.Sub(p.start),
	}
	seen := make(map[load.Type]bool, len(p.contributors))
	for _, c := range p.contributors {
		if !seen[c.Type] {
			seen[c.Type] = true
			ev.Contributors = append(ev.Contributors, c.Type)
		}
	}
	if a.logger != nil {
		a.logger.Info("load finalized",
			"type", ev.Type,
			"contributors", len(p.contributors),
			"raw", ev.RawDuration,
		)
	}
	return ev
}

// eventType names a merged event after its earliest-onset non-black
// contributor; pure black-screen loads stay typed black.
func eventType(contributors []load.Interval) load.Type {
	for _, c := range contributors {
		if c.Type != load.Black {
			return c.Type
		}
	}
	return load.Black
}
