// Package stats computes luminance and color-uniformity metrics for prepared
// frames. Purely functional; no state is kept between cycles.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/soocke/load-curtain-go/domain/frame"
)

// histogramBins is the intensity discretization used for the entropy measure.
const histogramBins = 128

// Metrics holds the per-frame uniformity measurements. Luminance and entropy
// are normalized to [0,1]; a perfectly uniform region yields zero entropy.
type Metrics struct {
	MeanLuminance float64
	FrameEntropy  float64
	SliceEntropy  float64
}

// Measure computes metrics for the prepared frame and its slice region.
func Measure(p *frame.Prepared) Metrics {
	return Metrics{
		MeanLuminance: MeanLuminance(p.FullGray),
		FrameEntropy:  Entropy(p.FullGray),
		SliceEntropy:  Entropy(p.SliceGray),
	}
}

// MeanLuminance returns the mean of a grayscale plane, normalized to [0,1].
func MeanLuminance(gray []float64) float64 {
	if len(gray) == 0 {
		return 0
	}
	var sum float64
	for _, g := range gray {
		sum += g
	}
	return sum / float64(len(gray)) / 255.0
}

// Entropy returns the Shannon entropy of the plane's discretized intensity
// histogram, normalized so the uniform distribution over all bins is 1.
func Entropy(gray []float64) float64 {
	if len(gray) == 0 {
		return 0
	}
	hist := make([]float64, histogramBins)
	for _, g := range gray {
		b := int(g) * histogramBins / 256
		if b < 0 {
			b = 0
		} else if b >= histogramBins {
			b = histogramBins - 1
		}
		hist[b]++
	}
	n := float64(len(gray))
	for i := range hist {
		hist[i] /= n
	}
	return stat.Entropy(hist) / math.Log(histogramBins)
}
