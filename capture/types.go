package capture

import (
	"image"
	"time"
)

// Frame carries one captured image and its monotonic capture metadata.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
}

// Stats summarises capture loop behaviour for instrumentation.
type Stats struct {
	Captures         uint64
	Skipped          uint64
	AvgCapture       time.Duration
	AvgCaptureMicros float64
	LastCapture      time.Time
	LatestFrameAge   time.Duration
	Sequence         uint64
}
