// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	xwebp "golang.org/x/image/webp"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encode(t *testing.T, format string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name             string
		format           string
		w, h             int
		maxWidth         int
		wantW, wantH     int
		wantSourceFormat string
	}{
		{"png downscaled", "png", 200, 100, 100, 100, 50, "png"},
		{"jpeg downscaled", "jpeg", 300, 450, 150, 150, 225, "jpeg"},
		{"gif kept", "gif", 80, 120, 100, 80, 120, "gif"},
		{"never upscaled", "png", 50, 70, 400, 50, 70, "png"},
		{"resize disabled", "png", 120, 60, 0, 120, 60, "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := encode(t, tt.format, testImage(tt.w, tt.h))
			res, err := Convert(bytes.NewReader(src), Options{MaxWidth: tt.maxWidth, Quality: 75})
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if res.Width != tt.wantW || res.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", res.Width, res.Height, tt.wantW, tt.wantH)
			}
			if res.SourceFormat != tt.wantSourceFormat {
				t.Errorf("SourceFormat = %q, want %q", res.SourceFormat, tt.wantSourceFormat)
			}

			cfg, err := xwebp.DecodeConfig(bytes.NewReader(res.Data))
			if err != nil {
				t.Fatalf("output is not webp: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("webp size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestConvertWebPInput(t *testing.T) {
	first, err := Convert(bytes.NewReader(encode(t, "png", testImage(64, 64))), Options{Quality: 90})
	if err != nil {
		t.Fatalf("Convert(png) error = %v", err)
	}
	second, err := Convert(bytes.NewReader(first.Data), Options{MaxWidth: 32, Quality: 90})
	if err != nil {
		t.Fatalf("Convert(webp) error = %v", err)
	}
	if second.SourceFormat != "webp" || second.Width != 32 || second.Height != 32 {
		t.Errorf("second = %s %dx%d", second.SourceFormat, second.Width, second.Height)
	}
}

func TestConvertRejectsGarbage(t *testing.T) {
	inputs := map[string][]byte{
		"empty":     nil,
		"text":      []byte("definitely not an image"),
		"truncated": encode(t, "png", testImage(20, 20))[:40],
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Convert(bytes.NewReader(data), Options{MaxWidth: 100, Quality: 80})
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Convert() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	res, err := Convert(bytes.NewReader(encode(t, "png", testImage(40, 30))), Options{Quality: 80})
	if err != nil {
		t.Fatal(err)
	}
	w, h, format, err := Inspect(res.Data)
	if err != nil || w != 40 || h != 30 || format != "webp" {
		t.Errorf("Inspect() = %d, %d, %q, %v", w, h, format, err)
	}
	if _, _, _, err := Inspect([]byte("nope")); !errors.Is(err, ErrDecode) {
		t.Errorf("Inspect(garbage) error = %v, want ErrDecode", err)
	}
}

func TestClampQuality(t *testing.T) {
	for in, want := range map[int]int{0: 80, -5: 80, 50: 50, 100: 100, 150: 100} {
		if got := clampQuality(in); got != want {
			t.Errorf("clampQuality(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for name, want := range map[string]bool{
		"01.jpg": true, "02.JPEG": true, "cover.png": true, "x.webp": true, "a.gif": true,
		"notes.txt": false, "Thumbs.db": false, "noext": false,
	} {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", name, got, want)
		}
	}
}
