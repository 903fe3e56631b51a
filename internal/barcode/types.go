package barcode

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrNotFound means the image was read but holds no locatable QR symbol.
	ErrNotFound = errors.New("barcode: no QR code found")
	// ErrUnreadable means a symbol was located but failed checksum or format
	// validation.
	ErrUnreadable = errors.New("barcode: QR code found but unreadable")
)

// Options controls backend decoding behavior.
type Options struct {
	// TryHarder enables the slower exhaustive search and the pure-barcode
	// fallback for clean renders.
	TryHarder bool
}

// Result represents a decoded QR symbol.
type Result struct {
	Value   string
	BBox    image.Rectangle // spans the finder patterns, empty if none were reported
	ECLevel string          // error correction level reported by the decoder
}

// Backend is a pluggable QR decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) (*Result, error)
}

// NewBackend returns the default gozxing-backed implementation.
func NewBackend() Backend { return &gozxingBackend{} }
