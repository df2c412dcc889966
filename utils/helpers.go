package utils

import (
	"bytes"
	"strings"

	"github.com/h2non/filetype"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatGIF     = "gif"
	formatBMP     = "bmp"
	formatTIFF    = "tiff"
	formatUnknown = "unknown"
)

// DetectFormat sniffs the leading bytes of data and returns the image format
// name, or "unknown".
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return formatUnknown
	}
	switch kind.Extension {
	case "jpg", "jpeg":
		return formatJPEG
	case "png":
		return formatPNG
	case "webp":
		return formatWebP
	case "gif":
		return formatGIF
	case "bmp":
		return formatBMP
	case "tif", "tiff":
		return formatTIFF
	}
	return formatUnknown
}

// DetectMediaType returns the sniffed MIME type of data, or "" when the
// content is not recognised.
func DetectMediaType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// IsImage reports whether data looks like any image format filetype knows.
func IsImage(data []byte) bool { return filetype.IsImage(data) }

// IsImageMediaType reports whether a declared MIME type is image-typed.
// Parameters such as "; charset=" are ignored.
func IsImageMediaType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return strings.HasPrefix(mt, "image/")
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// BytesReader creates an io.Reader backed by b without allocation.
func BytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
