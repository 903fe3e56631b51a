package imagesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ClipboardReader returns the encoded image currently on the clipboard, or an
// empty slice when the clipboard holds no image.
type ClipboardReader interface {
	ReadImage(ctx context.Context) ([]byte, error)
}

// FileReader reads a whole file.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// HTTPGetter downloads the body of a remote resource as binary content.
type HTTPGetter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Normalizer resolves a Source into a PixelImage.
type Normalizer struct {
	clipboard ClipboardReader
	files     FileReader
	fetch     HTTPGetter
	maxDim    int
	maxPixels int
	logger    *slog.Logger
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for debug tracing of each normalization.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithMaxDimension overrides DefaultMaxDimension.
func WithMaxDimension(px int) Option {
	return func(n *Normalizer) { n.maxDim = px }
}

// WithMaxPixels overrides DefaultMaxPixels; 0 disables the limit.
func WithMaxPixels(px int) Option {
	return func(n *Normalizer) { n.maxPixels = px }
}

// NewNormalizer creates a Normalizer over the given collaborators. Any of them
// may be nil, in which case the matching source kinds fail with IoOrFormat.
func NewNormalizer(clip ClipboardReader, files FileReader, fetch HTTPGetter, opts ...Option) *Normalizer {
	n := &Normalizer{
		clipboard: clip,
		files:     files,
		fetch:     fetch,
		maxDim:    DefaultMaxDimension,
		maxPixels: DefaultMaxPixels,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize reads the source and converts it to a PixelImage. Errors are
// always *SourceError.
func (n *Normalizer) Normalize(ctx context.Context, src Source) (*PixelImage, error) {
	var (
		px  *PixelImage
		err error
	)
	switch src.Kind {
	case KindClipboard:
		px, err = n.fromClipboard(ctx)
	case KindFile, KindDroppedFile:
		px, err = n.fromFile(ctx, src)
	case KindDroppedBase64:
		px, err = n.fromDataURI(src)
	case KindDroppedURI:
		if IsImageDataURI(src.URI) {
			px, err = n.fromDataURI(src)
		} else {
			px, err = n.fromRemote(ctx, src)
		}
	default:
		err = newError(FailureIoOrFormat, src.Kind, "resolve", fmt.Errorf("unsupported source kind %d", int(src.Kind)))
	}
	if err != nil {
		n.logger.Debug("Normalization failed", "source", src.Kind.String(), "error", err)
		return nil, err
	}
	n.logger.Debug("Normalized image", "source", src.Kind.String(), "width", px.Width, "height", px.Height)
	return px, nil
}

func (n *Normalizer) fromClipboard(ctx context.Context) (*PixelImage, error) {
	if n.clipboard == nil {
		return nil, newError(FailureIoOrFormat, KindClipboard, "read", errors.New("clipboard unavailable"))
	}
	data, err := n.clipboard.ReadImage(ctx)
	if err != nil {
		return nil, newError(FailureIoOrFormat, KindClipboard, "read", err)
	}
	if len(data) == 0 {
		return nil, newError(FailureEmpty, KindClipboard, "read", nil)
	}
	return n.decode(KindClipboard, data, FailureIoOrFormat)
}

func (n *Normalizer) fromFile(ctx context.Context, src Source) (*PixelImage, error) {
	if n.files == nil {
		return nil, newError(FailureIoOrFormat, src.Kind, "read", errors.New("file access unavailable"))
	}
	if src.Path == "" {
		return nil, newError(FailureIoOrFormat, src.Kind, "read", errors.New("empty path"))
	}
	data, err := n.files.ReadFile(ctx, src.Path)
	if err != nil {
		return nil, newError(FailureIoOrFormat, src.Kind, "read", err)
	}
	return n.decode(src.Kind, data, FailureIoOrFormat)
}

func (n *Normalizer) fromDataURI(src Source) (*PixelImage, error) {
	d, err := ParseDataURI(src.URI)
	if err != nil {
		return nil, newError(FailureIoOrFormat, src.Kind, "parse", err)
	}
	if !strings.HasPrefix(d.MediaType, "image/") {
		return nil, newError(FailureIoOrFormat, src.Kind, "parse", fmt.Errorf("media type %q is not an image", d.MediaType))
	}
	return n.decode(src.Kind, d.Data, FailureIoOrFormat)
}

func (n *Normalizer) fromRemote(ctx context.Context, src Source) (*PixelImage, error) {
	if n.fetch == nil {
		return nil, newError(FailureNetwork, src.Kind, "fetch", errors.New("http client unavailable"))
	}
	body, err := n.fetch.Get(ctx, src.URI)
	if err != nil {
		return nil, newError(FailureNetwork, src.Kind, "fetch", err)
	}
	// A body that does not decode means the link did not point at an image.
	return n.decode(src.Kind, body, FailureNetwork)
}

func (n *Normalizer) decode(src Kind, data []byte, f Failure) (*PixelImage, error) {
	px, _, err := DecodeContainer(data, n.maxDim, n.maxPixels)
	if err != nil {
		return nil, newError(f, src, "decode", err)
	}
	return px, nil
}
