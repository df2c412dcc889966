// Package pipeline provides the filter steps and the Step runner.
package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Skryldev/filter-engine/core"
	"github.com/Skryldev/filter-engine/effects"
	apperrors "github.com/Skryldev/filter-engine/errors"
	"github.com/Skryldev/filter-engine/tone"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes raw bytes in img.Data into an image.Image.
type DecodeStep struct {
	Registry core.Registry
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image != nil {
		return img, nil // already decoded
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	dec, ok := s.Registry.DecoderFor(img.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	decoded, err := dec.Decode(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, s.Name(), err)
	}

	// Preserve the raw data bytes alongside the decoded representation.
	decoded.Data = img.Data
	decoded.OriginalSize = img.OriginalSize
	return decoded, nil
}

// ── Tone ──────────────────────────────────────────────────────────────────────

// ToneStep applies the scalar adjustments of Config.
type ToneStep struct {
	Config core.FilterConfig
}

func (s *ToneStep) Name() string { return "tone" }

func (s *ToneStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	out := *img
	out.Image = tone.Transform(img.Image, s.Config)
	out.Meta.ColorSpace = core.ColorSpaceRGBA
	out.Meta.HasAlpha = true
	return &out, nil
}

// ── Effects ───────────────────────────────────────────────────────────────────

// EffectsStep runs Effects through Stack in order.
type EffectsStep struct {
	Stack   *effects.Stack
	Effects []core.Effect
}

func (s *EffectsStep) Name() string { return "effects" }

func (s *EffectsStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	if len(s.Effects) == 0 {
		return img, nil
	}
	out := *img
	out.Image = s.Stack.Apply(img.Image, s.Effects)
	b := out.Image.Bounds()
	out.Meta.Width, out.Meta.Height = b.Dx(), b.Dy()
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serialises the image in its own format.  When that format has no
// encoder, Fallback is used and the result is flagged.
type EncodeStep struct {
	Registry core.Registry
	Fallback core.Format
	Options  core.EncodeOptions
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(), apperrors.ErrEmptyInput)
	}

	format := img.Format
	enc, ok := s.Registry.EncoderFor(format)
	fallback := false
	if !ok && s.Fallback != "" && s.Fallback != format {
		format = s.Fallback
		enc, ok = s.Registry.EncoderFor(format)
		fallback = true
	}
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	out := *img
	out.Format = format
	data, err := enc.Encode(ctx, &out, s.Options)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, s.Name(), err)
	}

	out.Data = data
	out.Fallback = fallback
	out.Meta.Format = format
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}
