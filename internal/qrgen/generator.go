// Package qrgen renders text into QR code images.
package qrgen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultSize is the canvas edge length used when none is given.
	DefaultSize = 360
	// MaxSize bounds the canvas edge length; the canvas is held uncompressed.
	MaxSize = 2048
)

// Generated is one successfully encoded QR code. Canvas and PNG always carry
// the same symbol.
type Generated struct {
	Text    string
	Size    int
	Version int
	Canvas  image.Image
	PNG     []byte

	symbol *qrcode.QRCode
}

// TerminalString renders the symbol with half-block characters.
func (g *Generated) TerminalString() string {
	if g == nil || g.symbol == nil {
		return ""
	}
	return g.symbol.ToSmallString(false)
}

// Generator encodes text at a fixed error correction level.
type Generator struct {
	Recovery qrcode.RecoveryLevel
	// NormalizeNFC composes the text to Unicode NFC before encoding. Off by
	// default: the symbol carries the bytes the user entered.
	NormalizeNFC bool
}

// NewGenerator returns a Generator using medium error correction.
func NewGenerator() *Generator {
	return &Generator{Recovery: qrcode.Medium}
}

// Encode renders text as a square size x size canvas plus its PNG encoding.
// size <= 0 selects DefaultSize; sizes above MaxSize are InvalidInput.
// Errors are *EncodeError.
func (g *Generator) Encode(text string, size int) (*Generated, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &EncodeError{Kind: KindEmptyInput}
	}
	if !utf8.ValidString(text) {
		return nil, &EncodeError{Kind: KindInvalidInput, Err: fmt.Errorf("text is not valid UTF-8")}
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		return nil, &EncodeError{Kind: KindInvalidInput, Err: fmt.Errorf("size %d exceeds the maximum of %d", size, MaxSize)}
	}
	if g.NormalizeNFC {
		text = norm.NFC.String(text)
	}

	q, err := qrcode.New(text, g.Recovery)
	if err != nil {
		return nil, classify(err)
	}

	canvas := render(q, size)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, &EncodeError{Kind: KindInvalidInput, Err: fmt.Errorf("encoding png: %w", err)}
	}

	return &Generated{
		Text:    text,
		Size:    size,
		Version: q.VersionNumber,
		Canvas:  canvas,
		PNG:     buf.Bytes(),
		symbol:  q,
	}, nil
}

// render draws q onto an exactly size x size white canvas. skip2 never draws
// smaller than one pixel per module, so dense symbols on a small canvas are
// scaled down to fit.
func render(q *qrcode.QRCode, size int) *image.NRGBA {
	img := q.Image(size)
	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		img = imaging.Fit(img, size, size, imaging.NearestNeighbor)
	}
	return imaging.PasteCenter(imaging.New(size, size, color.White), img)
}

func classify(err error) *EncodeError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too long"):
		return &EncodeError{Kind: KindCapacity, Err: err}
	case strings.Contains(msg, "no data"):
		return &EncodeError{Kind: KindEmptyInput, Err: err}
	default:
		return &EncodeError{Kind: KindInvalidInput, Err: err}
	}
}
