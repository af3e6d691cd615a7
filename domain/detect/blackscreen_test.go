package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
	"github.com/soocke/load-curtain-go/domain/stats"
)

var (
	darkUniform   = stats.Metrics{MeanLuminance: 0.02, FrameEntropy: 0.05, SliceEntropy: 0.05}
	darkDetailed  = stats.Metrics{MeanLuminance: 0.05, FrameEntropy: 0.80, SliceEntropy: 0.70}
	darkSliceOnly = stats.Metrics{MeanLuminance: 0.05, FrameEntropy: 0.80, SliceEntropy: 0.10}
	bright        = stats.Metrics{MeanLuminance: 0.50, FrameEntropy: 0.80, SliceEntropy: 0.80}
)

func blackCfg() *config.Config {
	return config.DefaultConfig() // luminance 0.10, entropy 0.35, minimum 100ms
}

func feedBlack(d *BlackScreen, ms []stats.Metrics) []load.Interval {
	cfg := blackCfg()
	var out []load.Interval
	for i, m := range ms {
		if iv := d.Observe(m, at(i), cfg); iv != nil {
			out = append(out, *iv)
		}
	}
	return out
}

func repeat(m stats.Metrics, n int) []stats.Metrics {
	out := make([]stats.Metrics, n)
	for i := range out {
		out[i] = m
	}
	return out
}

func TestBlackScreenAtMinimumDurationConfirms(t *testing.T) {
	d := NewBlackScreen(nil)
	// Dark at cycles 0,1,2: candidate spans exactly 100ms at cycle 2.
	ms := append(repeat(darkUniform, 3), bright)
	got := feedBlack(d, ms)

	require.Len(t, got, 1)
	assert.Equal(t, load.Black, got[0].Type)
	assert.Equal(t, at(0), got[0].Start)
	assert.Equal(t, at(3), got[0].End)
}

func TestBlackScreenBelowMinimumNeverConfirms(t *testing.T) {
	d := NewBlackScreen(nil)
	// Dark for two cycles (50ms elapsed), then bright.
	ms := append(repeat(darkUniform, 2), repeat(bright, 5)...)
	got := feedBlack(d, ms)

	assert.Empty(t, got)
	assert.Equal(t, BlackIdle, d.State())
}

func TestDarkButDetailedSceneIsNotBlack(t *testing.T) {
	d := NewBlackScreen(nil)
	got := feedBlack(d, repeat(darkDetailed, 10))
	assert.Empty(t, got)
	assert.Equal(t, BlackIdle, d.State())
}

func TestSliceEntropyAloneSatisfiesUniformity(t *testing.T) {
	d := NewBlackScreen(nil)
	ms := append(repeat(darkSliceOnly, 4), bright)
	got := feedBlack(d, ms)
	require.Len(t, got, 1)
}

func TestBlackScreenExitsImmediately(t *testing.T) {
	d := NewBlackScreen(nil)
	cfg := blackCfg()
	for i := 0; i < 4; i++ {
		d.Observe(darkUniform, at(i), cfg)
	}
	require.Equal(t, BlackConfirmed, d.State())

	// First non-dark frame ends the interval; no release hysteresis.
	iv := d.Observe(bright, at(4), cfg)
	require.NotNil(t, iv)
	assert.Equal(t, BlackIdle, d.State())
}

func TestBlackScreenFlush(t *testing.T) {
	d := NewBlackScreen(nil)
	cfg := blackCfg()
	for i := 0; i < 4; i++ {
		d.Observe(darkUniform, at(i), cfg)
	}
	iv := d.Flush(at(5))
	require.NotNil(t, iv)
	assert.Equal(t, at(0), iv.Start)
	assert.Equal(t, at(5), iv.End)
}

func TestBlackScreenFlushWhileCandidate(t *testing.T) {
	d := NewBlackScreen(nil)
	d.Observe(darkUniform, at(0), blackCfg())
	assert.Nil(t, d.Flush(at(1)))
	assert.Equal(t, BlackIdle, d.State())
}
