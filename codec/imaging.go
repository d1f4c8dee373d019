// Package codec holds the image recompressors the SVG compressor can hand
// embedded images to. Every recompressor here turns png or jpeg input into
// jpeg output at a given quality.
package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	ErrDecodeFailed = errors.New("image decode failed")
	ErrEncodeFailed = errors.New("image encode failed")
)

// Imaging recompresses in pure Go. Transparent pixels are flattened onto
// Background since jpeg has no alpha channel.
type Imaging struct {
	// Images wider or taller than this are downscaled to fit, 0 disables
	MaxDimension int

	Background color.Color
}

func NewImaging(maxDimension int) *Imaging {
	return &Imaging{
		MaxDimension: maxDimension,
		Background:   color.White,
	}
}

func (c *Imaging) Recompress(ctx context.Context, raw []byte, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if c.MaxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > c.MaxDimension || b.Dy() > c.MaxDimension {
			img = imaging.Fit(img, c.MaxDimension, c.MaxDimension, imaging.Lanczos)
		}
	}
	img = c.flatten(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

func (c *Imaging) flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bg := c.Background
	if bg == nil {
		bg = color.White
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
