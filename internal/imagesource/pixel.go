package imagesource

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PixelImage is a tightly packed, row-major RGBA buffer (non-premultiplied).
// It is allocated per normalization and handed to the decoder exactly once.
type PixelImage struct {
	Width  int
	Height int
	Pix    []byte
}

// Validate checks the len(Pix) == Width*Height*4 invariant.
func (p *PixelImage) Validate() error {
	if p == nil {
		return errors.New("nil pixel image")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", p.Width, p.Height)
	}
	if want := p.Width * p.Height * 4; len(p.Pix) != want {
		return fmt.Errorf("pixel buffer length %d, want %d for %dx%d", len(p.Pix), want, p.Width, p.Height)
	}
	return nil
}

// Image wraps the buffer as an image.Image without copying.
func (p *PixelImage) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    p.Pix,
		Stride: p.Width * 4,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// FromImage converts any decoded image into a PixelImage.
func FromImage(img image.Image) (*PixelImage, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image bounds %v", b)
	}
	// Clone always yields a zero-origin NRGBA with Stride == 4*width.
	nrgba := imaging.Clone(img)
	px := &PixelImage{
		Width:  nrgba.Rect.Dx(),
		Height: nrgba.Rect.Dy(),
		Pix:    nrgba.Pix,
	}
	if err := px.Validate(); err != nil {
		return nil, err
	}
	return px, nil
}
