package similarity

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/frame"
	"github.com/soocke/load-curtain-go/domain/load"
	"github.com/soocke/load-curtain-go/domain/template"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AnalysisWidth = 8
	cfg.AnalysisHeight = 6
	return cfg
}

// splitImage is black on the left half, white on the right.
func splitImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if x >= w/2 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func prepared(gray []float64) *frame.Prepared {
	return &frame.Prepared{FullGray: gray}
}

func newTestEngine(t *testing.T) (*Engine, *template.Template) {
	t.Helper()
	cfg := testConfig()
	tpl := template.FromImage("elevator_power", load.Elevator, splitImage(8, 6), cfg)
	require.Equal(t, 8*6, tpl.MaskCount)
	return NewEngine(template.NewBundle(tpl)), tpl
}

func TestIdenticalFrameScoresOne(t *testing.T) {
	e, tpl := newTestEngine(t)
	gray := append([]float64(nil), tpl.Gray...)

	assert.InDelta(t, 1.0, e.Score(prepared(gray), load.Elevator, config.MethodL2Norm), 1e-9)
	assert.InDelta(t, 1.0, e.Score(prepared(gray), load.Elevator, config.MethodNCC), 1e-9)
}

func TestUniformFrameScoresLow(t *testing.T) {
	e, tpl := newTestEngine(t)
	gray := make([]float64, len(tpl.Gray))
	for i := range gray {
		gray[i] = 128
	}
	s := e.Score(prepared(gray), load.Elevator, config.MethodL2Norm)
	assert.InDelta(t, 0.5, s, 0.01)

	// Flat frame has no correlation with a structured template.
	assert.Equal(t, 0.0, e.Score(prepared(gray), load.Elevator, config.MethodNCC))
}

func TestMaskedPixelsAreIgnored(t *testing.T) {
	cfg := testConfig()
	tpl := template.FromImage("elevator_power", load.Elevator, splitImage(8, 6), cfg)
	// Mask out the first row by hand.
	for x := 0; x < 8; x++ {
		tpl.Mask[x] = false
	}
	tpl.MaskCount -= 8
	e := NewEngine(template.NewBundle(tpl))

	gray := append([]float64(nil), tpl.Gray...)
	for x := 0; x < 8; x++ {
		gray[x] = 77 // garbage under the mask
	}
	assert.InDelta(t, 1.0, e.Score(prepared(gray), load.Elevator, config.MethodL2Norm), 1e-9)
}

func TestVariantMaxWins(t *testing.T) {
	cfg := testConfig()
	a := template.FromImage("elevator_power", load.Elevator, splitImage(8, 6), cfg)
	inverted := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 4 {
				c = color.NRGBA{A: 255}
			}
			inverted.SetNRGBA(x, y, c)
		}
	}
	b := template.FromImage("elevator_varia", load.Elevator, inverted, cfg)
	e := NewEngine(template.NewBundle(a, b))

	gray := append([]float64(nil), b.Gray...)
	assert.InDelta(t, 1.0, e.Score(prepared(gray), load.Elevator, config.MethodL2Norm), 1e-9)
}

func TestRunningMaxIsMonotone(t *testing.T) {
	e, tpl := newTestEngine(t)
	high := append([]float64(nil), tpl.Gray...)
	low := make([]float64, len(tpl.Gray))
	for i := range low {
		low[i] = 128
	}

	e.Score(prepared(high), load.Elevator, config.MethodL2Norm)
	first := e.Max(load.Elevator)
	e.Score(prepared(low), load.Elevator, config.MethodL2Norm)
	assert.Equal(t, first, e.Max(load.Elevator))

	e.ResetMax()
	assert.Equal(t, 0.0, e.Max(load.Elevator))
}

func TestScoreAllCoversBundleTypes(t *testing.T) {
	e, tpl := newTestEngine(t)
	scores := e.ScoreAll(prepared(append([]float64(nil), tpl.Gray...)), config.MethodL2Norm)
	require.Len(t, scores, 1)
	assert.InDelta(t, 1.0, scores[load.Elevator], 1e-9)
}

func TestDeterminism(t *testing.T) {
	e, tpl := newTestEngine(t)
	gray := make([]float64, len(tpl.Gray))
	for i := range gray {
		gray[i] = float64((i * 37) % 256)
	}
	s1 := e.Score(prepared(gray), load.Elevator, config.MethodNCC)
	s2 := e.Score(prepared(gray), load.Elevator, config.MethodNCC)
	assert.Equal(t, s1, s2)
}
