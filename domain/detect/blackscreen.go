package detect

import (
	"log/slog"
	"time"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
	"github.com/soocke/load-curtain-go/domain/stats"
)

// BlackState enumerates black-screen detector states.
type BlackState int

const (
	BlackIdle BlackState = iota
	BlackCandidate
	BlackConfirmed
)

func (s BlackState) String() string {
	switch s {
	case BlackIdle:
		return "idle"
	case BlackCandidate:
		return "candidate"
	case BlackConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// BlackScreen detects sustained uniform-dark frames. The candidate condition
// requires low luminance AND low entropy; either signal alone would
// misclassify dark-but-detailed scenes. There is no release hysteresis:
// black-to-bright transitions are visually unambiguous, so the first frame
// failing either condition ends the interval.
//
// Not safe for concurrent use; call Observe from the analysis goroutine only.
type BlackScreen struct {
	logger *slog.Logger

	state       BlackState
	changedAt   time.Time
	candidateAt time.Time
}

// NewBlackScreen returns an idle detector.
func NewBlackScreen(logger *slog.Logger) *BlackScreen {
	return &BlackScreen{logger: logger}
}

// Observe advances the detector with one frame's metrics. A confirmed black
// screen ending on this frame returns its interval.
func (d *BlackScreen) Observe(m stats.Metrics, now time.Time, cfg *config.Config) *load.Interval {
	dark := m.MeanLuminance < cfg.BlackThreshold &&
		(m.FrameEntropy < cfg.BlackEntropyThreshold || m.SliceEntropy < cfg.BlackEntropyThreshold)
	switch d.state {
	case BlackIdle:
		if dark {
			d.candidateAt = now
			d.transition(BlackCandidate, now)
		}
	case BlackCandidate:
		if !dark {
			d.transition(BlackIdle, now)
		} else if now.Sub(d.candidateAt) >= cfg.BlackMinDuration() {
			d.transition(BlackConfirmed, now)
		}
	case BlackConfirmed:
		if !dark {
			iv := &load.Interval{Type: load.Black, Start: d.candidateAt, End: now}
			d.transition(BlackIdle, now)
			return iv
		}
	}
	return nil
}

// Flush finalizes a confirmed black screen on cooperative stop.
func (d *BlackScreen) Flush(now time.Time) *load.Interval {
	if d.state == BlackConfirmed {
		iv := &load.Interval{Type: load.Black, Start: d.candidateAt, End: now}
		d.transition(BlackIdle, now)
		return iv
	}
	d.transition(BlackIdle, now)
	return nil
}

// Reset returns the detector to idle without emitting.
func (d *BlackScreen) Reset() {
	d.state = BlackIdle
	d.changedAt = time.Time{}
	d.candidateAt = time.Time{}
}

// State returns the current state.
func (d *BlackScreen) State() BlackState { return d.state }

// ChangedAt returns the timestamp of the last state transition.
func (d *BlackScreen) ChangedAt() time.Time { return d.changedAt }

func (d *BlackScreen) transition(next BlackState, now time.Time) {
	if d.state == next {
		return
	}
	prev := d.state
	d.state = next
	d.changedAt = now
	if d.logger != nil {
		d.logger.Debug("black screen transition", "from", prev.String(), "to", next.String())
	}
}
