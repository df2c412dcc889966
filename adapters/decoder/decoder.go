// Package decoder provides format-specific image decoders.
package decoder

import (
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

// Image decodes one format with a pure-Go decoder.
type Image struct {
	format core.Format
	decode func(io.Reader) (image.Image, error)
}

// NewJPEG returns a JPEG decoder backed by image/jpeg.
func NewJPEG() *Image { return &Image{format: core.FormatJPEG, decode: jpeg.Decode} }

// NewPNG returns a PNG decoder backed by image/png.
func NewPNG() *Image { return &Image{format: core.FormatPNG, decode: png.Decode} }

// NewGIF returns a decoder for the first frame of a GIF.
func NewGIF() *Image { return &Image{format: core.FormatGIF, decode: gif.Decode} }

// NewWebP returns a WebP decoder backed by golang.org/x/image/webp.
// NOTE: x/image/webp decodes lossy and lossless stills; animation is not
// supported.
func NewWebP() *Image { return &Image{format: core.FormatWebP, decode: webp.Decode} }

// NewBMP returns a BMP decoder backed by golang.org/x/image/bmp.
func NewBMP() *Image { return &Image{format: core.FormatBMP, decode: bmp.Decode} }

// NewTIFF returns a TIFF decoder backed by golang.org/x/image/tiff.
func NewTIFF() *Image { return &Image{format: core.FormatTIFF, decode: tiff.Decode} }

// All returns one decoder per supported format.
func All() []*Image {
	return []*Image{NewJPEG(), NewPNG(), NewGIF(), NewWebP(), NewBMP(), NewTIFF()}
}

// Format returns the format this decoder handles.
func (d *Image) Format() core.Format { return d.format }

func (d *Image) CanDecode(format core.Format) bool { return format == d.format }

func (d *Image) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	op := string(d.format) + ".decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	img, err := d.decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	bounds := img.Bounds()
	return &core.ImageData{
		Image:  img,
		Format: d.format,
		Meta: core.Metadata{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     d.format,
			ColorSpace: colorSpace(img),
			HasAlpha:   hasAlpha(img),
		},
	}, nil
}

// colorSpace returns the colour space of an image.Image.
func colorSpace(img image.Image) core.ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return core.ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return core.ColorSpaceRGBA
	case *image.CMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		return true
	}
	return false
}
