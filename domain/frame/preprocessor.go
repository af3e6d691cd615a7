package frame

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/soocke/load-curtain-go/config"
)

// ErrDegraded marks a raw frame too small to analyze. The cycle is skipped;
// detector state does not advance.
var ErrDegraded = errors.New("degraded capture: frame below minimum dimensions")

// Prepared is a comparison-ready frame: the full frame normalized to the
// analysis resolution plus the configured slice region, each with a grayscale
// plane in [0,255].
type Prepared struct {
	Full       *image.NRGBA
	Slice      *image.NRGBA
	FullGray   []float64
	SliceGray  []float64
	CapturedAt time.Time
	Sequence   uint64
}

// Preprocessor normalizes raw captures. Stateless apart from its logger.
type Preprocessor struct {
	logger *slog.Logger
}

// NewPreprocessor returns a Preprocessor.
func NewPreprocessor(logger *slog.Logger) *Preprocessor {
	return &Preprocessor{logger: logger}
}

// Prepare converts a raw capture into a Prepared frame. Frames below the
// configured minimum dimensions return ErrDegraded and must not be fed to the
// detectors.
func (p *Preprocessor) Prepare(raw image.Image, capturedAt time.Time, seq uint64, cfg *config.Config) (*Prepared, error) {
	if raw == nil {
		return nil, ErrDegraded
	}
	b := raw.Bounds()
	if b.Dx() < cfg.MinFrameWidth || b.Dy() < cfg.MinFrameHeight {
		if p.logger != nil {
			p.logger.Debug("frame skipped", "w", b.Dx(), "h", b.Dy(), "min_w", cfg.MinFrameWidth, "min_h", cfg.MinFrameHeight)
		}
		return nil, fmt.Errorf("%w: %dx%d", ErrDegraded, b.Dx(), b.Dy())
	}
	full := imaging.Resize(raw, cfg.AnalysisWidth, cfg.AnalysisHeight, imaging.Lanczos)
	slice := imaging.Crop(full, cfg.SliceRect())
	return &Prepared{
		Full:       full,
		Slice:      slice,
		FullGray:   GrayPlane(full),
		SliceGray:  GrayPlane(slice),
		CapturedAt: capturedAt,
		Sequence:   seq,
	}, nil
}

// GrayPlane converts an NRGBA image into a row-major grayscale plane using
// Rec.709 luma weights. Values are in [0,255].
func GrayPlane(img *image.NRGBA) []float64 {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	idx := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			r, g, bb := row[i], row[i+1], row[i+2]
			out[idx] = 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(bb)
			idx++
		}
	}
	return out
}
