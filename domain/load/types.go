package load

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a category of in-game load.
type Type string

const (
	Elevator   Type = "elevator"
	Tram       Type = "tram"
	Teleportal Type = "teleportal"
	Capsule    Type = "capsule"
	// Black is the catch-all black-screen load; it has no reference template.
	Black Type = "black"
	// EndScreen is not a load: matching its template ends the tracking run.
	EndScreen Type = "endscreen"
)

// TemplateTypes lists the load types detected by template similarity, in the
// fixed order the pipeline evaluates them.
func TemplateTypes() []Type {
	return []Type{Elevator, Tram, Teleportal, Capsule}
}

// ParseType returns the Type named by s.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Elevator, Tram, Teleportal, Capsule, Black, EndScreen:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown load type %q", s)
}

// Interval is a candidate load period reported by a single detector.
type Interval struct {
	Type  Type
	Start time.Time
	End   time.Time
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Overlaps reports whether iv and other overlap or touch within gap.
func (iv Interval) Overlaps(other Interval, gap time.Duration) bool {
	if iv.Start.After(other.Start) {
		iv, other = other, iv
	}
	return !other.Start.After(iv.End.Add(gap))
}

// Event is a finalized load, produced by the arbitrator and completed by the
// timing accumulator. Immutable once committed to a session.
type Event struct {
	ID                uuid.UUID     `json:"id"`
	Type              Type          `json:"loadType"`
	Contributors      []Type        `json:"contributors"`
	Start             time.Time     `json:"startedAt"`
	End               time.Time     `json:"endedAt"`
	RawDuration       time.Duration `json:"rawDuration"`
	CorrectedDuration time.Duration `json:"correctedDuration"`
}
