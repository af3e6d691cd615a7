package capture

import (
	"image"
	"sync"
)

// Reusable frame pool to reduce heap churn from large RGBA backing slices.
// The screenshot library still allocates its own result; pooledCopy moves the
// pixels into a pooled buffer so the consumer can recycle them once the frame
// has been analyzed. If a consumer never recycles, behaviour degrades
// gracefully to plain allocation.

var framePool sync.Pool // stores *image.RGBA

func acquireFrame(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := framePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		img = &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	} else {
		img.Stride = w * 4
		img.Rect = rect
		img.Pix = img.Pix[:needed]
	}
	return img
}

// pooledCopy copies src into a pooled buffer.
func pooledCopy(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := acquireFrame(src.Rect)
	if len(dst.Pix) == len(src.Pix) && dst.Stride == src.Stride {
		copy(dst.Pix, src.Pix)
		return dst
	}
	// Stride mismatch; fall back to the source allocation.
	return src
}

// RecycleFrame returns a frame to the pool for reuse. The caller must not
// touch the frame afterwards.
func RecycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}
