package imagesource

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxDimension bounds the longest side handed to the decoder.
	DefaultMaxDimension = 4096
	// DefaultMaxPixels bounds the pixel count of an image before it is
	// decoded. Compressed containers are tiny next to their pixel buffers.
	DefaultMaxPixels = 50_000_000
)

// ErrTooManyPixels is wrapped when an image header declares more pixels than
// allowed.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// DecodeContainer decodes an encoded image (PNG, JPEG, GIF, BMP, TIFF, WebP)
// into a PixelImage. The header is checked against maxPixels before any
// pixel data is decoded; maxPixels <= 0 disables the check. Images larger
// than maxDim on either side are scaled down preserving aspect ratio;
// maxDim <= 0 disables scaling.
func DecodeContainer(data []byte, maxDim, maxPixels int) (*PixelImage, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("detecting image format: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("%s image has no pixels (%dx%d)", format, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, format, fmt.Errorf("%w: %s image is %dx%d, limit is %d pixels",
			ErrTooManyPixels, format, cfg.Width, cfg.Height, maxPixels)
	}
	// imaging.Decode applies EXIF orientation so phone photos are upright.
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, format, fmt.Errorf("decoding %s image: %w", format, err)
	}
	img = fitWithin(img, maxDim)
	px, err := FromImage(img)
	if err != nil {
		return nil, format, fmt.Errorf("converting %s image: %w", format, err)
	}
	return px, format, nil
}

func fitWithin(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}
