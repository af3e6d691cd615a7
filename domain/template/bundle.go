// Package template loads the reference template bundle: one or more
// image/mask variants per load type, compared against every analyzed frame.
package template

import (
	"fmt"
	"image"
	_ "image/png"
	"io/fs"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/load"
)

// Template is a single reference variant normalized to the analysis
// resolution. Pixels with alpha==0 in the source image are masked out and
// ignored during comparison (dynamic HUD regions).
type Template struct {
	Name string
	Type load.Type
	W, H int

	Gray []float64 // grayscale values, row-major; masked entries are zero
	Mask []bool    // true where the pixel participates in comparison

	// Masked summary statistics, precomputed for NCC scoring.
	MaskCount int
	Mean      float64
	Std       float64
}

// Bundle is the immutable set of reference templates for a session.
type Bundle struct {
	byType map[load.Type][]*Template
}

// LoadBundle reads every *.png under fsys. File names follow
// "<type>_<variant>.png" (for example elevator_varia.png); the prefix before
// the first underscore names the load type. Every template-detected load type
// must have at least one variant or loading fails. End-screen templates
// (endscreen_*.png) are optional.
func LoadBundle(fsys fs.FS, cfg *config.Config) (*Bundle, error) {
	names, err := fs.Glob(fsys, "*.png")
	if err != nil {
		return nil, fmt.Errorf("template bundle: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("template bundle: no templates found")
	}
	sort.Strings(names)
	b := &Bundle{byType: make(map[load.Type][]*Template)}
	for _, name := range names {
		base := strings.TrimSuffix(path.Base(name), ".png")
		prefix, _, _ := strings.Cut(base, "_")
		typ, err := load.ParseType(prefix)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		if typ == load.Black {
			return nil, fmt.Errorf("template %q: black-screen loads take no template", name)
		}
		tpl, err := loadTemplate(fsys, name, base, typ, cfg)
		if err != nil {
			return nil, err
		}
		b.byType[typ] = append(b.byType[typ], tpl)
	}
	for _, t := range load.TemplateTypes() {
		if len(b.byType[t]) == 0 {
			return nil, fmt.Errorf("template bundle: no templates for load type %q", t)
		}
	}
	return b, nil
}

func loadTemplate(fsys fs.FS, name, base string, typ load.Type, cfg *config.Config) (*Template, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return FromImage(base, typ, img, cfg), nil
}

// FromImage normalizes img to the analysis resolution and precomputes its
// masked grayscale statistics.
func FromImage(name string, typ load.Type, img image.Image, cfg *config.Config) *Template {
	norm := imaging.Resize(img, cfg.AnalysisWidth, cfg.AnalysisHeight, imaging.Lanczos)
	w, h := cfg.AnalysisWidth, cfg.AnalysisHeight
	t := &Template{
		Name: name,
		Type: typ,
		W:    w,
		H:    h,
		Gray: make([]float64, w*h),
		Mask: make([]bool, w*h),
	}
	var sum, sum2 float64
	idx := 0
	for y := 0; y < h; y++ {
		row := norm.Pix[y*norm.Stride : y*norm.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			if row[i+3] == 0 {
				idx++
				continue
			}
			g := 0.2126*float64(row[i]) + 0.7152*float64(row[i+1]) + 0.0722*float64(row[i+2])
			t.Gray[idx] = g
			t.Mask[idx] = true
			t.MaskCount++
			sum += g
			sum2 += g * g
			idx++
		}
	}
	if t.MaskCount > 0 {
		n := float64(t.MaskCount)
		t.Mean = sum / n
		variance := (sum2 - sum*sum/n) / n
		if variance > 0 {
			t.Std = math.Sqrt(variance)
		}
	}
	return t
}

// NewBundle builds a bundle from preconstructed templates. Unlike LoadBundle
// it does not require every template type to be present.
func NewBundle(templates ...*Template) *Bundle {
	b := &Bundle{byType: make(map[load.Type][]*Template)}
	for _, t := range templates {
		b.byType[t.Type] = append(b.byType[t.Type], t)
	}
	return b
}

// Variants returns the templates for a load type.
func (b *Bundle) Variants(t load.Type) []*Template { return b.byType[t] }

// Types returns the template-backed load types present in the bundle, in the
// pipeline's fixed evaluation order.
func (b *Bundle) Types() []load.Type {
	out := make([]load.Type, 0, len(b.byType))
	for _, t := range load.TemplateTypes() {
		if len(b.byType[t]) > 0 {
			out = append(out, t)
		}
	}
	return out
}
