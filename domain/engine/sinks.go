package engine

import (
	"time"

	"github.com/soocke/load-curtain-go/domain/detect"
	"github.com/soocke/load-curtain-go/domain/load"
	"github.com/soocke/load-curtain-go/domain/stats"
)

// CycleSnapshot is the per-cycle publication for the live dashboard.
type CycleSnapshot struct {
	At       time.Time
	Sequence uint64
	Stalled  bool

	Scores  map[load.Type]float64
	Maxima  map[load.Type]float64
	Metrics stats.Metrics

	Detectors map[load.Type]detect.PlateauState
	Black     detect.BlackState

	LoadActive   bool
	TotalRemoved time.Duration
	EventCount   int
}

// DashboardSink receives per-cycle scores, metrics and detector states.
type DashboardSink interface {
	PublishCycle(CycleSnapshot)
}

// EventSink receives finalized load events (export, cumulative timer mode).
type EventSink interface {
	PublishEvent(load.Event)
}

// TimerSink receives discrete pause/resume commands keyed to load
// boundaries.
type TimerSink interface {
	Pause(at time.Time)
	Resume(at time.Time)
}

// Sinks bundles the optional external consumers. Any field may be nil.
type Sinks struct {
	Dashboard DashboardSink
	Events    EventSink
	Timer     TimerSink
}
