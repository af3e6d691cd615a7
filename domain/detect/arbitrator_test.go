package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
)

func arbCfg() *config.Config {
	return config.DefaultConfig() // fusion tolerance 500ms
}

func ts(ms int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
}

func interval(t load.Type, startMS, endMS int) load.Interval {
	return load.Interval{Type: t, Start: ts(startMS), End: ts(endMS)}
}

func TestOverlappingIntervalsMergeIntoOneEvent(t *testing.T) {
	a := NewArbitrator(nil)
	ivs := []load.Interval{
		interval(load.Elevator, 0, 3000),
		interval(load.Black, 2900, 3150),
	}
	got := a.Observe(ivs, true, ts(4000), arbCfg())

	require.Len(t, got, 1)
	ev := got[0]
	assert.Equal(t, load.Elevator, ev.Type)
	assert.Equal(t, ts(0), ev.Start)
	assert.Equal(t, ts(3150), ev.End)
	assert.Equal(t, 3150*time.Millisecond, ev.RawDuration)
	assert.Equal(t, []load.Type{load.Elevator, load.Black}, ev.Contributors)
}

func TestAdjacentWithinToleranceMerges(t *testing.T) {
	a := NewArbitrator(nil)
	ivs := []load.Interval{
		interval(load.Tram, 0, 1000),
		interval(load.Black, 1400, 1600), // 400ms gap, tolerance 500ms
	}
	got := a.Observe(ivs, true, ts(3000), arbCfg())

	require.Len(t, got, 1)
	assert.Equal(t, ts(0), got[0].Start)
	assert.Equal(t, ts(1600), got[0].End)
}

func TestDistantIntervalsStaySeparate(t *testing.T) {
	a := NewArbitrator(nil)
	ivs := []load.Interval{
		interval(load.Elevator, 0, 1000),
		interval(load.Capsule, 2000, 2500), // 1s gap
	}
	got := a.Observe(ivs, true, ts(4000), arbCfg())

	require.Len(t, got, 2)
	assert.Equal(t, load.Elevator, got[0].Type)
	assert.Equal(t, load.Capsule, got[1].Type)
}

func TestNoFinalizeWhileDetectorsActive(t *testing.T) {
	a := NewArbitrator(nil)
	got := a.Observe([]load.Interval{interval(load.Elevator, 0, 1000)}, false, ts(5000), arbCfg())
	assert.Empty(t, got)
	assert.True(t, a.Active())

	// All idle but still within fusion reach: hold.
	got = a.Observe(nil, true, ts(1400), arbCfg())
	assert.Empty(t, got)

	got = a.Observe(nil, true, ts(1501), arbCfg())
	require.Len(t, got, 1)
	assert.False(t, a.Active())
}

func TestPureBlackEventKeepsBlackType(t *testing.T) {
	a := NewArbitrator(nil)
	got := a.Observe([]load.Interval{interval(load.Black, 0, 200)}, true, ts(1000), arbCfg())
	require.Len(t, got, 1)
	assert.Equal(t, load.Black, got[0].Type)
}

func TestEarliestOnsetNamesMergedEvent(t *testing.T) {
	a := NewArbitrator(nil)
	// Black starts first but the tram contributor names the event.
	ivs := []load.Interval{
		interval(load.Black, 0, 300),
		interval(load.Tram, 200, 1500),
	}
	got := a.Observe(ivs, true, ts(3000), arbCfg())

	require.Len(t, got, 1)
	assert.Equal(t, load.Tram, got[0].Type)
	assert.Equal(t, ts(0), got[0].Start)
}

func TestFlushFinalizesPending(t *testing.T) {
	a := NewArbitrator(nil)
	a.Observe([]load.Interval{interval(load.Elevator, 0, 1000)}, false, ts(1000), arbCfg())
	require.True(t, a.Active())

	got := a.Flush()
	require.Len(t, got, 1)
	assert.Equal(t, ts(1000), got[0].End)
	assert.False(t, a.Active())
}

func TestEventIDsAreUnique(t *testing.T) {
	a := NewArbitrator(nil)
	first := a.Observe([]load.Interval{interval(load.Elevator, 0, 100)}, true, ts(1000), arbCfg())
	second := a.Observe([]load.Interval{interval(load.Tram, 2000, 2100)}, true, ts(4000), arbCfg())
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}
