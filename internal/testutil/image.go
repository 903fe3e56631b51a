package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/require"
)

// DefaultQRSize is the edge length used for generated QR fixtures.
const DefaultQRSize = 256

// QRImage renders text as a QR symbol of size x size pixels.
func QRImage(text string, size int) (image.Image, error) {
	q, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encoding fixture %q: %w", text, err)
	}
	return q.Image(size), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes img as a high quality JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BlankImage returns a uniform image with no symbol in it.
func BlankImage(width, height int, c color.Color) image.Image {
	return imaging.New(width, height, c)
}

// EmbedInCanvas pastes img in the middle of a larger canvas, simulating a
// screenshot that contains a QR code among other content.
func EmbedInCanvas(img image.Image, width, height int, background color.Color) image.Image {
	return imaging.PasteCenter(imaging.New(width, height, background), img)
}

// Rotate90 turns img a quarter turn counter-clockwise.
func Rotate90(img image.Image) image.Image {
	return imaging.Rotate90(img)
}

// MustQRPNG returns the PNG bytes of a QR fixture encoding text.
func MustQRPNG(t *testing.T, text string, size int) []byte {
	t.Helper()

	img, err := QRImage(text, size)
	require.NoError(t, err)
	data, err := EncodePNG(img)
	require.NoError(t, err)
	return data
}

// MustBlankPNG returns the PNG bytes of a white image without any symbol.
func MustBlankPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	data, err := EncodePNG(BlankImage(width, height, color.White))
	require.NoError(t, err)
	return data
}
