package detect

import (
	"log/slog"
	"time"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
)

// PlateauState enumerates the confidence plateau states.
type PlateauState int

const (
	PlateauIdle PlateauState = iota
	PlateauRising
	PlateauConfirmed
	PlateauReleasing
)

func (s PlateauState) String() string {
	switch s {
	case PlateauIdle:
		return "idle"
	case PlateauRising:
		return "rising"
	case PlateauConfirmed:
		return "confirmed"
	case PlateauReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// Plateau converts one load type's similarity-score series into candidate
// load intervals. Rise confirmation and release are debounced independently:
// a score must hold at or above (onset - hysteresis) for the minimum plateau
// duration to confirm, and must hold below it for the release debounce window
// to release. A score recovering during release continues the same load.
// After a load releases, new onsets of the same type are suppressed for the
// configured cooldown window.
//
// Not safe for concurrent use; call Observe from the analysis goroutine only.
type Plateau struct {
	typ    load.Type
	logger *slog.Logger

	state         PlateauState
	changedAt     time.Time
	onsetAt       time.Time // entry into RISING for the current episode
	releaseAt     time.Time // entry into RELEASING
	cooldownUntil time.Time
}

// NewPlateau returns an idle detector for one load type.
func NewPlateau(typ load.Type, logger *slog.Logger) *Plateau {
	return &Plateau{typ: typ, logger: logger}
}

// Observe advances the detector with one score sample. It returns a candidate
// interval when a confirmed load fully releases, and nil otherwise. The
// interval spans entry-into-RISING through entry-into-RELEASING.
func (d *Plateau) Observe(score float64, now time.Time, cfg config.TypeConfig) *load.Interval {
	floor := cfg.OnsetThreshold - cfg.HysteresisMargin
	switch d.state {
	case PlateauIdle:
		if score >= cfg.OnsetThreshold && !now.Before(d.cooldownUntil) {
			d.onsetAt = now
			d.transition(PlateauRising, now)
		}
	case PlateauRising:
		if score < floor {
			d.transition(PlateauIdle, now)
		} else if now.Sub(d.onsetAt) >= cfg.MinPlateau() {
			d.transition(PlateauConfirmed, now)
		}
	case PlateauConfirmed:
		if score < floor {
			d.releaseAt = now
			d.transition(PlateauReleasing, now)
		}
	case PlateauReleasing:
		if score >= floor {
			// Flicker reopened the plateau: same load continues.
			d.transition(PlateauConfirmed, now)
		} else if now.Sub(d.releaseAt) >= cfg.ReleaseDebounce() {
			iv := &load.Interval{Type: d.typ, Start: d.onsetAt, End: d.releaseAt}
			d.cooldownUntil = now.Add(cfg.Cooldown())
			d.transition(PlateauIdle, now)
			return iv
		}
	}
	return nil
}

// Flush finalizes an in-flight load on cooperative stop, using now as the
// implicit release. An unconfirmed rise yields nothing.
func (d *Plateau) Flush(now time.Time) *load.Interval {
	switch d.state {
	case PlateauConfirmed:
		iv := &load.Interval{Type: d.typ, Start: d.onsetAt, End: now}
		d.transition(PlateauIdle, now)
		return iv
	case PlateauReleasing:
		iv := &load.Interval{Type: d.typ, Start: d.onsetAt, End: d.releaseAt}
		d.transition(PlateauIdle, now)
		return iv
	default:
		d.transition(PlateauIdle, now)
		return nil
	}
}

// Reset returns the detector to idle without emitting.
func (d *Plateau) Reset() {
	d.state = PlateauIdle
	d.changedAt = time.Time{}
	d.onsetAt = time.Time{}
	d.releaseAt = time.Time{}
	d.cooldownUntil = time.Time{}
}

// State returns the current state.
func (d *Plateau) State() PlateauState { return d.state }

// ChangedAt returns the timestamp of the last state transition.
func (d *Plateau) ChangedAt() time.Time { return d.changedAt }

// Type returns the load type this detector watches.
func (d *Plateau) Type() load.Type { return d.typ }

func (d *Plateau) transition(next PlateauState, now time.Time) {
	if d.state == next {
		return
	}
	prev := d.state
	d.state = next
	d.changedAt = now
	if d.logger != nil {
		d.logger.Debug("plateau transition", "type", d.typ, "from", prev.String(), "to", next.String())
	}
}
