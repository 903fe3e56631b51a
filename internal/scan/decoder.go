package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
)

// Decoder runs the QR backend over normalized images. It holds no state
// between calls.
type Decoder struct {
	backend barcode.Backend
	opts    barcode.Options
}

// NewDecoder creates a Decoder. A nil backend selects barcode.NewBackend().
func NewDecoder(backend barcode.Backend, tryHarder bool) *Decoder {
	if backend == nil {
		backend = barcode.NewBackend()
	}
	return &Decoder{backend: backend, opts: barcode.Options{TryHarder: tryHarder}}
}

// Decode classifies a single decode attempt. Only the first symbol found is
// reported.
func (d *Decoder) Decode(ctx context.Context, img *imagesource.PixelImage) Outcome {
	if img == nil {
		return NoImage()
	}
	if err := img.Validate(); err != nil {
		return SourceFailure(&imagesource.SourceError{
			Failure: imagesource.FailureIoOrFormat,
			Op:      "validate",
			Err:     err,
		})
	}
	res, err := d.backend.Decode(ctx, img.Image(), d.opts)
	if err != nil {
		if ctx.Err() != nil {
			return SourceFailure(fmt.Errorf("decode interrupted: %w", err))
		}
		return NoCode(err)
	}
	out := Success(res.Value)
	out.ECLevel = res.ECLevel
	out.Bounds = res.BBox
	return out
}

// Resolve maps the result of normalization plus decoding onto an Outcome.
// An empty source becomes NoImage and every other normalization error
// becomes SourceError.
func (d *Decoder) Resolve(ctx context.Context, img *imagesource.PixelImage, normErr error) Outcome {
	if normErr != nil {
		if errors.Is(normErr, imagesource.ErrEmpty) {
			return NoImage()
		}
		return SourceFailure(normErr)
	}
	return d.Decode(ctx, img)
}
