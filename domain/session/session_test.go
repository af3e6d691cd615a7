package session

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
)

var discardLogger = slog.New(slog.NewTextHandler(discardWriter{}, nil))

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func start() time.Time { return time.Unix(1000, 0) }

func event(t load.Type, startMS, durMS int) load.Event {
	s := start().Add(time.Duration(startMS) * time.Millisecond)
	d := time.Duration(durMS) * time.Millisecond
	return load.Event{
		ID:          uuid.New(),
		Type:        t,
		Start:       s,
		End:         s.Add(d),
		RawDuration: d,
	}
}

func TestCommitAppliesOffsetCorrection(t *testing.T) {
	cfg := config.DefaultConfig()
	tc := cfg.Types["elevator"]
	tc.OffsetCorrectionMS = 500
	cfg.Types["elevator"] = tc
	s := New(cfg, start(), discardLogger)

	ev, ok := s.Commit(event(load.Elevator, 0, 3000), cfg)
	require.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, ev.CorrectedDuration)
	assert.Equal(t, 2500*time.Millisecond, s.TotalRemoved())
}

func TestCommitClampsCorrectionAtZero(t *testing.T) {
	cfg := config.DefaultConfig()
	tc := cfg.Types["tram"]
	tc.OffsetCorrectionMS = 500
	cfg.Types["tram"] = tc
	s := New(cfg, start(), discardLogger)

	ev, ok := s.Commit(event(load.Tram, 0, 200), cfg)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), ev.CorrectedDuration)
	assert.Equal(t, time.Duration(0), s.TotalRemoved())
}

func TestTotalIsExactSumOfCorrectedDurations(t *testing.T) {
	s := New(config.DefaultConfig(), start(), discardLogger)
	durations := []int{317, 1250, 90, 4211, 150}
	var want time.Duration
	offset := 0
	for _, d := range durations {
		ev, ok := s.Commit(event(load.Elevator, offset, d), nil)
		require.True(t, ok)
		want += ev.CorrectedDuration
		offset += d + 1000
	}
	assert.Equal(t, want, s.TotalRemoved())
	assert.Equal(t, len(durations), s.Count())
}

func TestFinishFreezesSession(t *testing.T) {
	s := New(config.DefaultConfig(), start(), discardLogger)
	s.Commit(event(load.Black, 0, 150), nil)
	s.Finish(start().Add(time.Minute))
	require.True(t, s.Finished())

	_, ok := s.Commit(event(load.Elevator, 0, 1000), nil)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 150*time.Millisecond, s.TotalRemoved())
}

func TestCounts(t *testing.T) {
	s := New(config.DefaultConfig(), start(), discardLogger)
	s.Commit(event(load.Elevator, 0, 1000), nil)
	s.Commit(event(load.Black, 2000, 150), nil)
	s.Commit(event(load.Elevator, 4000, 900), nil)

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 2, s.CountByType(load.Elevator))
	assert.Equal(t, 1, s.CountByType(load.Black))
	assert.Equal(t, 2, s.MajorCount())
}

func TestRecent(t *testing.T) {
	s := New(config.DefaultConfig(), start(), discardLogger)
	s.Commit(event(load.Elevator, 0, 1000), nil)
	s.Commit(event(load.Tram, 60000, 1000), nil)

	now := start().Add(62 * time.Second)
	recent := s.Recent(now, 5*time.Second)
	require.Len(t, recent, 1)
	assert.Equal(t, load.Tram, recent[0].Type)
}

func TestCommitUsesCycleSnapshot(t *testing.T) {
	s := New(config.DefaultConfig(), start(), discardLogger)

	ev, ok := s.Commit(event(load.Elevator, 0, 1000), nil)
	require.True(t, ok)
	assert.Equal(t, time.Second, ev.CorrectedDuration)

	// A live offset update must apply to events committed afterwards.
	updated := config.DefaultConfig()
	tc := updated.Types["elevator"]
	tc.OffsetCorrectionMS = 300
	updated.Types["elevator"] = tc

	ev, ok = s.Commit(event(load.Elevator, 5000, 1000), updated)
	require.True(t, ok)
	assert.Equal(t, 700*time.Millisecond, ev.CorrectedDuration)
	assert.Equal(t, 1700*time.Millisecond, s.TotalRemoved())
}

func TestEventsReturnsCopy(t *testing.T) {
	s := New(config.DefaultConfig(), start(), discardLogger)
	s.Commit(event(load.Elevator, 0, 1000), nil)
	evs := s.Events()
	evs[0].Type = load.Black
	assert.Equal(t, load.Elevator, s.Events()[0].Type)
}
