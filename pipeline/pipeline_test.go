package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/Skryldev/filter-engine/adapters/decoder"
	"github.com/Skryldev/filter-engine/adapters/encoder"
	"github.com/Skryldev/filter-engine/core"
	"github.com/Skryldev/filter-engine/effects"
	apperrors "github.com/Skryldev/filter-engine/errors"
	"github.com/Skryldev/filter-engine/pipeline"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func newPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func newRegistry(withPNGEncoder bool) *core.DefaultRegistry {
	reg := core.NewRegistry()
	for _, d := range decoder.All() {
		reg.RegisterDecoder(d.Format(), d)
	}
	for _, e := range encoder.All(90) {
		if e.Format() == core.FormatPNG && !withPNGEncoder {
			continue
		}
		reg.RegisterEncoder(e.Format(), e)
	}
	return reg
}

func filterPipeline(reg core.Registry, cfg core.FilterConfig) *pipeline.Pipeline {
	return pipeline.New().Use(
		&pipeline.DecodeStep{Registry: reg},
		&pipeline.ToneStep{Config: cfg},
		&pipeline.EffectsStep{Stack: effects.NewStack(nil), Effects: cfg.Effects},
		&pipeline.EncodeStep{Registry: reg, Fallback: core.FormatJPEG},
	)
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	return img
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestPipeline_NeutralRoundTripIsPixelExact(t *testing.T) {
	raw := newPNG(t, 24, 16)
	reg := newRegistry(true)

	out, timings, err := filterPipeline(reg, core.FilterConfig{}).Run(context.Background(),
		&core.ImageData{Data: raw, Format: core.FormatPNG, OriginalSize: int64(len(raw))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Format != core.FormatPNG || out.Fallback {
		t.Fatalf("format = %s fallback=%v, want png without fallback", out.Format, out.Fallback)
	}
	for _, step := range []string{"decode", "tone", "effects", "encode"} {
		if _, ok := timings[step]; !ok {
			t.Errorf("missing timing for %s", step)
		}
	}

	want, got := decodePNG(t, raw), decodePNG(t, out.Data)
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.NRGBAModel.Convert(want.At(x, y)) != color.NRGBAModel.Convert(got.At(x, y)) {
				t.Fatalf("pixel (%d,%d) changed", x, y)
			}
		}
	}
}

func TestPipeline_FallsBackWhenFormatHasNoEncoder(t *testing.T) {
	raw := newPNG(t, 8, 8)
	reg := newRegistry(false)

	out, _, err := filterPipeline(reg, core.FilterConfig{Sepia: core.Val(1)}).Run(context.Background(),
		&core.ImageData{Data: raw, Format: core.FormatPNG})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Format != core.FormatJPEG || !out.Fallback {
		t.Fatalf("format = %s fallback=%v, want jpeg fallback", out.Format, out.Fallback)
	}
	if len(out.Data) < 3 || out.Data[0] != 0xFF || out.Data[1] != 0xD8 {
		t.Fatal("output is not JPEG")
	}
}

func TestPipeline_DecodeFailureIsTerminal(t *testing.T) {
	reg := newRegistry(true)
	corrupt := append(newPNG(t, 4, 4)[:20], 0, 0, 0)

	out, _, err := filterPipeline(reg, core.FilterConfig{}).Run(context.Background(),
		&core.ImageData{Data: corrupt, Format: core.FormatPNG})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if out != nil {
		t.Error("failed run must not return partial output")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
		t.Errorf("err = %v, want decode category", err)
	}
}

func TestPipeline_UnknownFormat(t *testing.T) {
	_, _, err := filterPipeline(newRegistry(true), core.FilterConfig{}).Run(context.Background(),
		&core.ImageData{Data: []byte("xxxx"), Format: core.FormatUnknown})
	if !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

// flaky fails with a transient error until calls reaches n.
type flaky struct {
	mu    sync.Mutex
	calls int
	n     int
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls < f.n {
		return nil, apperrors.Transient("flaky", errors.New("try again"))
	}
	return img, nil
}

func TestPipeline_RetriesTransientErrors(t *testing.T) {
	step := &flaky{n: 3}
	_, _, err := pipeline.New().Use(step).WithRetry(2, time.Millisecond).
		Run(context.Background(), &core.ImageData{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if step.calls != 3 {
		t.Errorf("calls = %d, want 3", step.calls)
	}

	step = &flaky{n: 5}
	_, _, err = pipeline.New().Use(step).WithRetry(1, time.Millisecond).
		Run(context.Background(), &core.ImageData{})
	if !apperrors.IsRetryable(err) {
		t.Fatalf("err = %v, want the transient error after exhausting retries", err)
	}
	if step.calls != 2 {
		t.Errorf("calls = %d, want 2", step.calls)
	}
}

type recordingHook struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHook) BeforeStep(_ context.Context, name string, _ *core.ImageData) {
	h.mu.Lock()
	h.events = append(h.events, "before:"+name)
	h.mu.Unlock()
}

func (h *recordingHook) AfterStep(_ context.Context, name string, _ *core.ImageData, _ time.Duration, err error) {
	h.mu.Lock()
	suffix := ""
	if err != nil {
		suffix = "!"
	}
	h.events = append(h.events, "after:"+name+suffix)
	h.mu.Unlock()
}

func TestPipeline_HooksWrapEachStep(t *testing.T) {
	hook := &recordingHook{}
	reg := newRegistry(true)
	p := filterPipeline(reg, core.FilterConfig{}).AddHook(hook)

	if _, _, err := p.Run(context.Background(), &core.ImageData{Data: newPNG(t, 2, 2), Format: core.FormatPNG}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"before:decode", "after:decode", "before:tone", "after:tone",
		"before:effects", "after:effects", "before:encode", "after:encode",
	}
	if len(hook.events) != len(want) {
		t.Fatalf("events = %v", hook.events)
	}
	for i := range want {
		if hook.events[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, hook.events[i], want[i])
		}
	}
}

func TestPipeline_CloneIsIndependent(t *testing.T) {
	base := pipeline.New().Use(&pipeline.ToneStep{})
	clone := base.Clone().Use(&pipeline.EffectsStep{})
	if len(base.Steps()) != 1 || len(clone.Steps()) != 2 {
		t.Fatalf("base=%v clone=%v", base.Steps(), clone.Steps())
	}
}

func TestPipeline_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := filterPipeline(newRegistry(true), core.FilterConfig{}).Run(ctx,
		&core.ImageData{Data: newPNG(t, 2, 2), Format: core.FormatPNG})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func BenchmarkPipeline_Dramatic_640x480(b *testing.B) {
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	raw := buf.Bytes()
	reg := newRegistry(true)
	cfg := core.FilterConfig{Brightness: core.Val(0.9), Contrast: core.Val(1.5), Saturation: core.Val(0.8)}.
		WithEffects(core.Effect{Name: "vignette", Params: map[string]any{"intensity": 0.6}})
	p := filterPipeline(reg, cfg)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := p.Run(context.Background(), &core.ImageData{Data: raw, Format: core.FormatPNG}); err != nil {
			b.Fatal(err)
		}
	}
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) Execute(context.Context, *core.ImageData) (*core.ImageData, error) {
	panic("makeslice: len out of range")
}

func TestPipeline_PanicBecomesPipelineError(t *testing.T) {
	hook := &recordingHook{}
	out, _, err := pipeline.New().Use(panicky{}).AddHook(hook).
		Run(context.Background(), &core.ImageData{})
	if out != nil {
		t.Errorf("out = %+v, want nil", out)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryPipeline) {
		t.Fatalf("err = %v, want a pipeline error", err)
	}
	if len(hook.events) != 2 || hook.events[1] != "after:panicky!" {
		t.Errorf("events = %v", hook.events)
	}
}
