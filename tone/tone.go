// Package tone applies the scalar colour adjustments of a FilterConfig.
//
// Stages run per pixel on normalised, non-premultiplied RGBA in a fixed order:
// brightness, contrast, saturation, sepia, grayscale, opacity, invert, hue.
// Channels are clamped to [0,1] before being quantised back to 8 bits.  Blur
// is spatial and runs last, on the quantised buffer.  A stage whose field is
// unset or neutral is skipped, so a neutral config leaves pixels untouched.
package tone

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/filter-engine/core"
)

// Luma weights used by the saturation and grayscale stages.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// pixel is one normalised RGBA sample.
type pixel struct{ r, g, b, a float64 }

func (p pixel) luma() float64 { return lumaR*p.r + lumaG*p.g + lumaB*p.b }

// stage adjusts one pixel by amount.
type stage struct {
	field core.Field
	apply func(p pixel, amount float64) pixel
}

// stages is the per-pixel order.  It must not change between calls.
var stages = []stage{
	{core.FieldBrightness, brightness},
	{core.FieldContrast, contrast},
	{core.FieldSaturation, saturation},
	{core.FieldSepia, sepia},
	{core.FieldGrayscale, grayscale},
	{core.FieldOpacity, opacity},
	{core.FieldInvert, invert},
	{core.FieldHue, nil}, // bound per call, see hueStage
}

// Order returns the fields of the per-pixel stages in the order they run.
func Order() []core.Field {
	out := make([]core.Field, len(stages))
	for i, s := range stages {
		out[i] = s.field
	}
	return out
}

// Transform returns a new image with cfg's tone adjustments applied.  The
// source is never modified.
func Transform(src image.Image, cfg core.FilterConfig) *image.NRGBA {
	dst := toNRGBA(src)

	active := make([]stage, 0, len(stages))
	amounts := make([]float64, 0, len(stages))
	for _, s := range stages {
		if cfg.IsNeutral(s.field) {
			continue
		}
		amount := cfg.Resolved(s.field)
		if s.field == core.FieldHue {
			s.apply = hueStage(amount)
		}
		active = append(active, s)
		amounts = append(amounts, amount)
	}

	if len(active) > 0 {
		apply(dst, active, amounts)
	}

	b := dst.Bounds()
	if sigma := core.BlurSigma(cfg.Resolved(core.FieldBlur), b.Dx(), b.Dy()); sigma > 0 {
		dst = imaging.Blur(dst, sigma)
	}
	return dst
}

func apply(img *image.NRGBA, active []stage, amounts []float64) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for i := 0; i+3 < len(row); i += 4 {
			p := pixel{
				r: float64(row[i]) / 255,
				g: float64(row[i+1]) / 255,
				b: float64(row[i+2]) / 255,
				a: float64(row[i+3]) / 255,
			}
			for k, s := range active {
				p = s.apply(p, amounts[k])
			}
			row[i] = quantize(p.r)
			row[i+1] = quantize(p.g)
			row[i+2] = quantize(p.b)
			row[i+3] = quantize(p.a)
		}
	}
}

// ── stages ────────────────────────────────────────────────────────────────────

func brightness(p pixel, v float64) pixel {
	p.r *= v
	p.g *= v
	p.b *= v
	return p
}

func contrast(p pixel, v float64) pixel {
	p.r = (p.r-0.5)*v + 0.5
	p.g = (p.g-0.5)*v + 0.5
	p.b = (p.b-0.5)*v + 0.5
	return p
}

func saturation(p pixel, v float64) pixel {
	l := p.luma()
	t := 1 - v
	p.r = lerp(p.r, l, t)
	p.g = lerp(p.g, l, t)
	p.b = lerp(p.b, l, t)
	return p
}

func sepia(p pixel, v float64) pixel {
	sr := 0.393*p.r + 0.769*p.g + 0.189*p.b
	sg := 0.349*p.r + 0.686*p.g + 0.168*p.b
	sb := 0.272*p.r + 0.534*p.g + 0.131*p.b
	p.r = lerp(p.r, sr, v)
	p.g = lerp(p.g, sg, v)
	p.b = lerp(p.b, sb, v)
	return p
}

func grayscale(p pixel, v float64) pixel {
	l := p.luma()
	p.r = lerp(p.r, l, v)
	p.g = lerp(p.g, l, v)
	p.b = lerp(p.b, l, v)
	return p
}

func opacity(p pixel, v float64) pixel {
	p.a *= v
	return p
}

func invert(p pixel, v float64) pixel {
	p.r = lerp(p.r, 1-p.r, v)
	p.g = lerp(p.g, 1-p.g, v)
	p.b = lerp(p.b, 1-p.b, v)
	return p
}

// ── helpers ───────────────────────────────────────────────────────────────────

func lerp(from, to, t float64) float64 { return from + (to-from)*t }

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

// quantize clamps v and maps it to 0..255, rounding half up.
func quantize(v float64) uint8 {
	return uint8(math.Floor(clamp01(v)*255 + 0.5))
}

// toNRGBA copies src into a fresh non-premultiplied buffer with origin (0,0).
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], n.Pix[n.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
