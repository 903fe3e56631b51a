package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type gozxingBackend struct{}

func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("barcode: creating bitmap: %w", err)
	}

	attempts := []map[gozxing.DecodeHintType]interface{}{nil}
	if opts.TryHarder {
		attempts = append(attempts,
			map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true},
			map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_PURE_BARCODE: true},
		)
	}

	reader := qrcode.NewQRCodeReader()
	var lastErr error
	for _, hints := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r *gozxing.Result
		if hints == nil {
			r, err = reader.DecodeWithoutHints(bmp)
		} else {
			r, err = reader.Decode(bmp, hints)
		}
		if err == nil {
			return toResult(r), nil
		}
		lastErr = err
		reader.Reset()
	}
	return nil, classify(lastErr)
}

func classify(err error) error {
	var (
		checksum gozxing.ChecksumException
		format   gozxing.FormatException
	)
	switch {
	case errors.As(err, &checksum), errors.As(err, &format):
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	default:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
}

func toResult(r *gozxing.Result) *Result {
	pts := make([]image.Point, 0, len(r.GetResultPoints()))
	for _, p := range r.GetResultPoints() {
		pts = append(pts, image.Pt(int(p.GetX()), int(p.GetY())))
	}
	out := &Result{
		Value: r.GetText(),
		BBox:  rectFromPoints(pts),
	}
	if lvl, ok := r.GetResultMetadata()[gozxing.ResultMetadataType_ERROR_CORRECTION_LEVEL]; ok {
		out.ECLevel = fmt.Sprint(lvl)
	}
	return out
}

func rectFromPoints(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
