// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package imaging converts uploaded page scans to WebP.
//
// Inputs may be JPEG, PNG, GIF or WebP. Pages wider than the configured
// maximum are downscaled with Catmull-Rom resampling, keeping the aspect
// ratio; narrower pages keep their size. Output is lossy WebP.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks input that is not a decodable image. It is never worth retrying.
var ErrDecode = errors.New("image decode failed")

// MaxPixels bounds width*height accepted before decoding.
const MaxPixels = 80_000_000

// Options controls conversion.
type Options struct {
	MaxWidth int // 0 disables resizing
	Quality  int // WebP quality 1-100
}

// Result is one converted page.
type Result struct {
	Data         []byte
	Width        int
	Height       int
	SourceFormat string
}

// Convert decodes r, resizes and encodes it as WebP.
func Convert(r io.Reader, opts Options) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds limits", ErrDecode, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img = Resize(img, opts.MaxWidth)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(clampQuality(opts.Quality))}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}

	b := img.Bounds()
	return &Result{
		Data:         buf.Bytes(),
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceFormat: format,
	}, nil
}

// Resize scales img down to maxWidth. Images at or below maxWidth are returned unchanged.
func Resize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func clampQuality(q int) int {
	switch {
	case q <= 0:
		return 80
	case q > 100:
		return 100
	default:
		return q
	}
}

// Inspect returns the dimensions and format of an encoded image without decoding pixels.
func Inspect(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

var supportedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(name))]
}
