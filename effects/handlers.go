package effects

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/filter-engine/core"
)

// Builtin returns a fresh table of the built-in handlers.
func Builtin() map[string]Handler {
	return map[string]Handler{
		"vignette":      Vignette,
		"sharpen":       Sharpen,
		"gaussian_blur": GaussianBlur,
		"blur":          GaussianBlur,
		"tint":          Tint,
		"grain":         Grain,
		"fade":          Fade,
	}
}

// ── Vignette ──────────────────────────────────────────────────────────────────

// Vignette darkens the image toward its corners.
//
//	intensity  0..1, how dark the corners get (default 0.5)
//	radius     0..1, normalised distance where darkening starts (default 0.6)
func Vignette(src image.Image, p Params) image.Image {
	intensity := clamp(p.Float("intensity", 0.5), 0, 1)
	radius := clamp(p.Float("radius", 0.6), 0, 0.99)
	if intensity == 0 {
		return src
	}

	dst := imaging.Clone(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	cx, cy := float64(w-1)/2, float64(h-1)/2
	maxDist := math.Hypot(cx, cy)
	if maxDist == 0 {
		return dst
	}

	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy) / maxDist
			f := 1 - intensity*smoothstep(radius, 1, d)
			i := x * 4
			row[i] = scale8(row[i], f)
			row[i+1] = scale8(row[i+1], f)
			row[i+2] = scale8(row[i+2], f)
		}
	}
	return dst
}

// ── Sharpen / blur ────────────────────────────────────────────────────────────

// Sharpen applies an unsharp mask.  amount is the Gaussian sigma (default 1).
func Sharpen(src image.Image, p Params) image.Image {
	b := src.Bounds()
	amount := core.BlurSigma(p.Float("amount", 1), b.Dx(), b.Dy())
	if amount <= 0 {
		return src
	}
	return imaging.Sharpen(src, amount)
}

// GaussianBlur blurs with sigma (default 2).
func GaussianBlur(src image.Image, p Params) image.Image {
	b := src.Bounds()
	sigma := core.BlurSigma(p.Float("sigma", p.Float("radius", 2)), b.Dx(), b.Dy())
	if sigma <= 0 {
		return src
	}
	return imaging.Blur(src, sigma)
}

// ── Colour effects ────────────────────────────────────────────────────────────

// Tint blends every pixel toward color (hex, default "#ff9900") by strength
// (0..1, default 0.3).
func Tint(src image.Image, p Params) image.Image {
	tint, ok := parseHex(p.String("color", "#ff9900"))
	strength := clamp(p.Float("strength", 0.3), 0, 1)
	if !ok || strength == 0 {
		return src
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		c.R = mix8(c.R, tint.R, strength)
		c.G = mix8(c.G, tint.G, strength)
		c.B = mix8(c.B, tint.B, strength)
		return c
	})
}

// Fade lifts the shadows toward a washed-out look.  amount is 0..1 (default 0.2).
func Fade(src image.Image, p Params) image.Image {
	amount := clamp(p.Float("amount", 0.2), 0, 1)
	if amount == 0 {
		return src
	}
	lift := func(v uint8) uint8 {
		f := float64(v) / 255
		return to8(f + amount*0.25*(1-f))
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		c.R, c.G, c.B = lift(c.R), lift(c.G), lift(c.B)
		return c
	})
}

// Grain adds deterministic film grain.  amount is 0..1 (default 0.08); seed
// selects the noise pattern (default 1).
func Grain(src image.Image, p Params) image.Image {
	amount := clamp(p.Float("amount", 0.08), 0, 1)
	if amount == 0 {
		return src
	}
	seed := uint32(p.Int("seed", 1))

	dst := imaging.Clone(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			n := (noise(uint32(x), uint32(y), seed)*2 - 1) * amount
			i := x * 4
			row[i] = to8(float64(row[i])/255 + n)
			row[i+1] = to8(float64(row[i+1])/255 + n)
			row[i+2] = to8(float64(row[i+2])/255 + n)
		}
	}
	return dst
}

// ── helpers ───────────────────────────────────────────────────────────────────

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func smoothstep(e0, e1, x float64) float64 {
	t := clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

func to8(f float64) uint8 { return uint8(math.Floor(clamp(f, 0, 1)*255 + 0.5)) }

func scale8(v uint8, f float64) uint8 { return to8(float64(v) / 255 * f) }

func mix8(a, b uint8, t float64) uint8 {
	return to8((float64(a) + (float64(b)-float64(a))*t) / 255)
}

// noise hashes a pixel position to [0,1).
func noise(x, y, seed uint32) float64 {
	h := x*374761393 + y*668265263 + seed*2246822519
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return float64(h) / float64(math.MaxUint32+1)
}

func parseHex(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}
