//go:build vips

package vips_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/filter-engine/adapters/decoder"
	"github.com/Skryldev/filter-engine/adapters/vips"
	"github.com/Skryldev/filter-engine/core"
	"github.com/Skryldev/filter-engine/effects"
	"github.com/Skryldev/filter-engine/pipeline"
	"github.com/Skryldev/filter-engine/presets"
)

var backend *vips.Backend

func TestMain(m *testing.M) {
	backend = vips.NewBackend(vips.BackendConfig{DefaultQuality: 85})
	code := m.Run()
	backend.Shutdown()
	os.Exit(code)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func makeJPEG(tb testing.TB, w, h int) []byte {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 92}))
	return buf.Bytes()
}

func TestBackend_WebPRoundTrip(t *testing.T) {
	ctx := context.Background()
	out, err := backend.Encode(ctx, &core.ImageData{Image: gradient(64, 48), Format: core.FormatWebP}, core.EncodeOptions{Lossless: true})
	require.NoError(t, err)

	img, err := backend.Decode(ctx, bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, core.FormatWebP, img.Format)
	assert.Equal(t, 64, img.Meta.Width)
	assert.Equal(t, 48, img.Meta.Height)

	// The pure-Go decoder must read what libvips wrote.
	again, err := decoder.NewWebP().Decode(ctx, bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), again.Image.Bounds())
}

func TestBackend_RejectsUnsupportedEncode(t *testing.T) {
	_, err := backend.Encode(context.Background(), &core.ImageData{Image: gradient(4, 4), Format: core.FormatBMP}, core.EncodeOptions{})
	assert.Error(t, err)
	assert.False(t, backend.CanEncode(core.FormatBMP))
}

func dramaticPipeline(reg core.Registry) *pipeline.Pipeline {
	p, _ := presets.Builtin().Lookup("dramatic")
	return pipeline.New().Use(
		&pipeline.DecodeStep{Registry: reg},
		&pipeline.ToneStep{Config: p.Config},
		&pipeline.EffectsStep{Stack: effects.NewStack(nil), Effects: p.Config.Effects},
		&pipeline.EncodeStep{Registry: reg, Fallback: core.FormatJPEG},
	)
}

func benchmarkDramatic(b *testing.B, reg core.Registry) {
	raw := makeJPEG(b, 1920, 1080)
	p := dramaticPipeline(reg)
	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := p.Run(context.Background(), &core.ImageData{Data: raw, Format: core.FormatJPEG}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDramatic_Vips_1920x1080(b *testing.B) {
	reg := core.NewRegistry()
	vips.Register(reg, backend)
	benchmarkDramatic(b, reg)
}
