package effects_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/filter-engine/core"
	"github.com/Skryldev/filter-engine/effects"
)

func flat(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pix(img image.Image) []uint8 {
	n, ok := img.(*image.NRGBA)
	if !ok {
		panic("expected *image.NRGBA")
	}
	return append([]uint8(nil), n.Pix...)
}

func TestStack_EmptyListIsIdentity(t *testing.T) {
	src := flat(8, 8, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	out := effects.NewStack(nil).Apply(src, nil)
	require.Same(t, src, out)
}

func TestStack_UnregisteredEffectIsIdentity(t *testing.T) {
	s := effects.NewStack(nil)
	src := flat(8, 8, color.NRGBA{R: 90, G: 120, B: 200, A: 255})
	before := pix(src)

	names := append([]string{"does_not_exist", ""}, effects.PassThrough...)
	for _, name := range names {
		require.False(t, s.Registered(name), "%q should not be registered", name)
		var out image.Image
		require.NotPanics(t, func() {
			out = s.Apply(src, []core.Effect{{Name: name, Params: map[string]any{"intensity": 1.0}}})
		})
		assert.Equal(t, before, pix(out), "effect %q changed the image", name)
	}
}

func TestStack_OrderMatters(t *testing.T) {
	s := effects.NewStack(nil)
	src := flat(4, 4, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
	tint := core.Effect{Name: "tint", Params: map[string]any{"color": "#0000ff", "strength": 0.5}}
	fade := core.Effect{Name: "fade", Params: map[string]any{"amount": 1.0}}

	a := pix(s.Apply(src, []core.Effect{tint, fade}))
	b := pix(s.Apply(src, []core.Effect{fade, tint}))
	assert.NotEqual(t, a, b)
}

func TestStack_HandlersArePure(t *testing.T) {
	s := effects.NewStack(nil)
	src := flat(16, 16, color.NRGBA{R: 200, G: 150, B: 100, A: 255})
	before := pix(src)
	for _, name := range s.Names() {
		s.Apply(src, []core.Effect{{Name: name}})
		require.Equal(t, before, pix(src), "%s mutated its input", name)
	}
}

func TestStack_ExtraHandlersOverrideBuiltins(t *testing.T) {
	called := 0
	s := effects.NewStack(map[string]effects.Handler{
		"Vignette": func(img image.Image, _ effects.Params) image.Image { called++; return img },
	})
	s.Apply(flat(2, 2, color.NRGBA{A: 255}), []core.Effect{{Name: "vignette"}})
	assert.Equal(t, 1, called)
}

func TestVignette_DarkensCornersOnly(t *testing.T) {
	src := flat(21, 21, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	out := effects.Vignette(src, effects.Params{"intensity": 0.6}).(*image.NRGBA)

	assert.Equal(t, uint8(200), out.NRGBAAt(10, 10).R, "centre must be untouched")
	corner := out.NRGBAAt(0, 0)
	assert.Less(t, corner.R, uint8(200))
	assert.Equal(t, uint8(80), corner.R, "full-strength corner = 200*(1-0.6)")
	assert.Equal(t, uint8(255), corner.A)
}

func TestVignette_ZeroIntensityIsIdentity(t *testing.T) {
	src := flat(5, 5, color.NRGBA{R: 1, A: 255})
	require.Same(t, src, effects.Vignette(src, effects.Params{"intensity": 0}))
}

func TestTint_FullStrengthReachesColor(t *testing.T) {
	src := flat(2, 2, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	out := effects.Tint(src, effects.Params{"color": "#f80", "strength": 1}).(*image.NRGBA)
	assert.Equal(t, color.NRGBA{R: 255, G: 136, B: 0, A: 255}, out.NRGBAAt(1, 1))

	bad := effects.Tint(src, effects.Params{"color": "not-a-colour"})
	require.Same(t, src, bad)
}

func TestGrain_Deterministic(t *testing.T) {
	src := flat(8, 8, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	p := effects.Params{"amount": 0.2, "seed": 7}
	assert.Equal(t, pix(effects.Grain(src, p)), pix(effects.Grain(src, p)))
	assert.NotEqual(t, pix(src), pix(effects.Grain(src, p)))
}

func TestBlurEffects_HugeSigmaIsBounded(t *testing.T) {
	src := flat(6, 6, color.NRGBA{R: 40, G: 80, B: 120, A: 255})
	for _, name := range []string{"gaussian_blur", "sharpen"} {
		key := "sigma"
		if name == "sharpen" {
			key = "amount"
		}
		out := effects.Builtin()[name](src, effects.Params{key: 1e10})
		require.NotNil(t, out, name)
		assert.Equal(t, src.Bounds(), out.Bounds(), name)
	}
}

func TestParams_Coercion(t *testing.T) {
	p := effects.Params{"f": 0.5, "i": 3, "s": "1.25", "bad": true}
	assert.Equal(t, 0.5, p.Float("f", 0))
	assert.Equal(t, 3.0, p.Float("i", 0))
	assert.Equal(t, 1.25, p.Float("s", 0))
	assert.Equal(t, 9.0, p.Float("bad", 9))
	assert.Equal(t, 9.0, p.Float("missing", 9))
	assert.Equal(t, 3, p.Int("i", 0))
}
