package utils

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encoded(t *testing.T, f string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	var err error
	switch f {
	case formatJPEG:
		err = jpeg.Encode(&buf, img, nil)
	case formatPNG:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", f, err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", encoded(t, formatJPEG), formatJPEG},
		{"png", encoded(t, formatPNG), formatPNG},
		{"webp header", append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 16)...), formatWebP},
		{"gif header", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"), formatGIF},
		{"text", []byte("hello, world"), formatUnknown},
		{"short", []byte{0xFF}, formatUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.data); got != tc.want {
				t.Errorf("DetectFormat = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage(encoded(t, formatPNG)) {
		t.Error("png not recognised as image")
	}
	if IsImage([]byte("%PDF-1.7 not an image")) {
		t.Error("pdf recognised as image")
	}
	if got := DetectMediaType(encoded(t, formatJPEG)); got != "image/jpeg" {
		t.Errorf("DetectMediaType = %q", got)
	}
}

func TestIsImageMediaType(t *testing.T) {
	for mt, want := range map[string]bool{
		"image/png":                true,
		" IMAGE/JPEG ; q=1":        true,
		"video/mp4":                false,
		"application/octet-stream": false,
		"":                         false,
	} {
		if got := IsImageMediaType(mt); got != want {
			t.Errorf("IsImageMediaType(%q) = %v, want %v", mt, got, want)
		}
	}
}

func TestReadAll_Limit(t *testing.T) {
	ctx := context.Background()
	data := bytes.Repeat([]byte{7}, 100)

	got, err := ReadAll(ctx, bytes.NewReader(data), 100, 16)
	if err != nil {
		t.Fatalf("exact-limit read failed: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("read %d bytes", len(got))
	}

	_, err = ReadAll(ctx, bytes.NewReader(data), 99, 16)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}

	got, err = ReadAll(ctx, bytes.NewReader(data), 0, 0)
	if err != nil || len(got) != 100 {
		t.Fatalf("unlimited read: %d bytes, err %v", len(got), err)
	}
}

func TestDrainReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := DrainReader(ctx, bytes.NewReader([]byte("x")), 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
