// Package session owns the timing accumulator: it turns finalized load
// events into corrected durations and maintains the session's ordered event
// log and cumulative removed time.
package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
)

// Session is one tracking run: an append-only event log plus the cumulative
// corrected duration. Mutated only by Commit from the analysis goroutine;
// after Finish the session is immutable until discarded.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	EndedAt   time.Time

	cfg          *config.Config // threshold snapshot at session start
	logger       *slog.Logger
	events       []load.Event
	totalRemoved time.Duration
	finished     bool
}

// New starts a session with a snapshot of the active configuration.
func New(cfg *config.Config, startedAt time.Time, logger *slog.Logger) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Session{
		ID:        uuid.New(),
		StartedAt: startedAt,
		cfg:       cfg.Clone(),
		logger:    logger,
	}
}

// Commit applies the per-type offset correction to a finalized event, appends
// it to the log, and grows the cumulative removed time. cfg is the analysis
// cycle's snapshot, so live offset updates affect subsequent events; nil falls
// back to the session-start snapshot. The returned event carries the corrected
// duration. Commits after Finish are dropped.
func (s *Session) Commit(ev load.Event, cfg *config.Config) (load.Event, bool) {
	if s.finished {
		if s.logger != nil {
			s.logger.Warn("event dropped: session finished", "type", ev.Type)
		}
		return ev, false
	}
	if cfg == nil {
		cfg = s.cfg
	}
	corrected := ev.RawDuration - cfg.TypeConfig(ev.Type).OffsetCorrection()
	if corrected < 0 {
		corrected = 0
	}
	ev.CorrectedDuration = corrected
	s.events = append(s.events, ev)
	s.totalRemoved += corrected
	if s.logger != nil {
		s.logger.Info("load removed",
			"type", ev.Type,
			"raw", ev.RawDuration,
			"corrected", corrected,
			"total_removed", s.totalRemoved,
		)
	}
	return ev, true
}

// Finish freezes the session.
func (s *Session) Finish(at time.Time) {
	if s.finished {
		return
	}
	s.finished = true
	s.EndedAt = at
}

// Finished reports whether the session has been frozen.
func (s *Session) Finished() bool { return s.finished }

// Events returns a copy of the ordered event log.
func (s *Session) Events() []load.Event {
	out := make([]load.Event, len(s.events))
	copy(out, s.events)
	return out
}

// TotalRemoved returns the cumulative corrected duration.
func (s *Session) TotalRemoved() time.Duration { return s.totalRemoved }

// Count returns the number of recorded events.
func (s *Session) Count() int { return len(s.events) }

// CountByType returns the number of events of the given type.
func (s *Session) CountByType(t load.Type) int {
	n := 0
	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// MajorCount returns the number of events other than pure black screens.
func (s *Session) MajorCount() int {
	n := 0
	for _, ev := range s.events {
		if ev.Type != load.Black {
			n++
		}
	}
	return n
}

// Recent returns events that ended within lookback of now.
func (s *Session) Recent(now time.Time, lookback time.Duration) []load.Event {
	cutoff := now.Add(-lookback)
	var out []load.Event
	for _, ev := range s.events {
		if !ev.End.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// Config returns the threshold snapshot taken at session start.
func (s *Session) Config() *config.Config { return s.cfg }
