// Package similarity scores prepared frames against reference templates.
// Scores are deterministic functions of (frame, template); smoothing and
// thresholding belong to the detectors, not here.
package similarity

import (
	"math"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/frame"
	"github.com/soocke/load-curtain-go/domain/load"
	"github.com/soocke/load-curtain-go/domain/template"
)

const maxByte = 255.0

// Engine computes per-type similarity scores and tracks each type's running
// session maximum. Not safe for concurrent use; call from the analysis
// goroutine only.
type Engine struct {
	bundle *template.Bundle
	maxima map[load.Type]float64
}

// NewEngine returns an Engine bound to an immutable template bundle.
func NewEngine(bundle *template.Bundle) *Engine {
	return &Engine{bundle: bundle, maxima: make(map[load.Type]float64)}
}

// ScoreAll scores the prepared frame against every template-backed load type
// and updates the running maxima. Scores are in [0,1]; 1.0 is an exact match
// under the mask.
func (e *Engine) ScoreAll(p *frame.Prepared, method string) map[load.Type]float64 {
	out := make(map[load.Type]float64, len(e.bundle.Types()))
	for _, t := range e.bundle.Types() {
		s := e.Score(p, t, method)
		out[t] = s
	}
	return out
}

// Score returns the similarity of the prepared full frame to the given load
// type: the maximum across the type's template variants.
func (e *Engine) Score(p *frame.Prepared, t load.Type, method string) float64 {
	best := 0.0
	for _, tpl := range e.bundle.Variants(t) {
		var s float64
		switch method {
		case config.MethodNCC:
			s = scoreNCC(p.FullGray, tpl)
		default:
			s = scoreL2(p.FullGray, tpl)
		}
		if s > best {
			best = s
		}
	}
	if best > e.maxima[t] {
		e.maxima[t] = best
	}
	return best
}

// Max returns the session's running maximum score for a load type. The value
// is monotonically non-decreasing until ResetMax.
func (e *Engine) Max(t load.Type) float64 { return e.maxima[t] }

// Maxima returns a copy of the running maxima.
func (e *Engine) Maxima() map[load.Type]float64 {
	out := make(map[load.Type]float64, len(e.maxima))
	for k, v := range e.maxima {
		out[k] = v
	}
	return out
}

// ResetMax clears the running maxima for a new session.
func (e *Engine) ResetMax() { e.maxima = make(map[load.Type]float64) }

// scoreL2 is 1 - L2(frame,template)/maxError over the masked pixels, the
// normalized square-root-of-sum-of-squared-error comparison.
func scoreL2(gray []float64, tpl *template.Template) float64 {
	if tpl.MaskCount == 0 || len(gray) != len(tpl.Gray) {
		return 0
	}
	var sum float64
	for i, ok := range tpl.Mask {
		if !ok {
			continue
		}
		d := gray[i] - tpl.Gray[i]
		sum += d * d
	}
	maxErr := math.Sqrt(float64(tpl.MaskCount)) * maxByte
	s := 1 - math.Sqrt(sum)/maxErr
	return clamp01(s)
}

// scoreNCC is masked normalized cross-correlation at fixed alignment, clamped
// to [0,1]. Negative correlation carries no load signal and maps to zero.
func scoreNCC(gray []float64, tpl *template.Template) float64 {
	if tpl.MaskCount == 0 || len(gray) != len(tpl.Gray) {
		return 0
	}
	n := float64(tpl.MaskCount)
	var sumF, sumF2, sumFT float64
	for i, ok := range tpl.Mask {
		if !ok {
			continue
		}
		f := gray[i]
		sumF += f
		sumF2 += f * f
		sumFT += f * tpl.Gray[i]
	}
	meanF := sumF / n
	varF := (sumF2 - sumF*sumF/n) / n
	stdF := 0.0
	if varF > 0 {
		stdF = math.Sqrt(varF)
	}
	if stdF <= 1e-9 || tpl.Std <= 1e-9 {
		// Flat frame or flat template: exact match only when both are flat
		// at the same level.
		if stdF <= 1e-9 && tpl.Std <= 1e-9 && math.Abs(meanF-tpl.Mean) <= 1e-6 {
			return 1
		}
		return 0
	}
	r := (sumFT - n*meanF*tpl.Mean) / (n * stdF * tpl.Std)
	return clamp01(r)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
