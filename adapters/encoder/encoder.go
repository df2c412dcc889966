// Package encoder provides format-specific image encoders.
package encoder

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Image encodes one format with a pure-Go encoder.  There is no pure-Go WebP
// encoder; WebP output needs the vips backend or falls back to another format.
type Image struct {
	format core.Format
	encode func(w io.Writer, img image.Image, opts core.EncodeOptions) error
}

// NewJPEG returns a JPEG encoder.  defaultQuality applies when
// EncodeOptions.Quality is 0.
func NewJPEG(defaultQuality int) *Image {
	if defaultQuality <= 0 {
		defaultQuality = 85
	}
	return &Image{format: core.FormatJPEG, encode: func(w io.Writer, img image.Image, opts core.EncodeOptions) error {
		q := opts.Quality
		if q <= 0 {
			q = defaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	}}
}

// NewPNG returns a PNG encoder.  Lossless selects best compression.
func NewPNG() *Image {
	return &Image{format: core.FormatPNG, encode: func(w io.Writer, img image.Image, opts core.EncodeOptions) error {
		enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
		if opts.Lossless {
			enc.CompressionLevel = png.BestCompression
		}
		return enc.Encode(w, img)
	}}
}

// NewGIF returns a single-frame GIF encoder.
func NewGIF() *Image {
	return &Image{format: core.FormatGIF, encode: func(w io.Writer, img image.Image, _ core.EncodeOptions) error {
		return gif.Encode(w, img, nil)
	}}
}

// NewBMP returns a BMP encoder backed by golang.org/x/image/bmp.
func NewBMP() *Image {
	return &Image{format: core.FormatBMP, encode: func(w io.Writer, img image.Image, _ core.EncodeOptions) error {
		return bmp.Encode(w, img)
	}}
}

// NewTIFF returns a TIFF encoder backed by golang.org/x/image/tiff.  TIFF
// output is always Deflate-compressed, which is already lossless; the
// format has no lossy mode here, so Lossless and Quality are ignored.
func NewTIFF() *Image {
	return &Image{format: core.FormatTIFF, encode: func(w io.Writer, img image.Image, _ core.EncodeOptions) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}}
}

// All returns one encoder per supported format.
func All(defaultQuality int) []*Image {
	return []*Image{NewJPEG(defaultQuality), NewPNG(), NewGIF(), NewBMP(), NewTIFF()}
}

// Format returns the format this encoder produces.
func (e *Image) Format() core.Format { return e.format }

func (e *Image) CanEncode(format core.Format) bool { return format == e.format }

func (e *Image) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	op := string(e.format) + ".encode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	if img == nil || img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op, apperrors.ErrEmptyInput)
	}

	var buf bytes.Buffer
	if err := e.encode(&buf, img.Image, opts); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return buf.Bytes(), nil
}
