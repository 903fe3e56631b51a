// Package controller owns the scan status and the generated QR code and
// applies the user intents (scan, open, drop, type, generate, copy, save)
// to them.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
)

// Normalizer turns a source into pixels.
type Normalizer interface {
	Normalize(ctx context.Context, src imagesource.Source) (*imagesource.PixelImage, error)
}

// Decoder maps normalization results onto scan outcomes.
type Decoder interface {
	Resolve(ctx context.Context, img *imagesource.PixelImage, normErr error) scan.Outcome
}

// Encoder renders text as a QR code.
type Encoder interface {
	Encode(text string, size int) (*qrgen.Generated, error)
}

// Deps are the collaborators of a Controller. Normalizer, Decoder and
// Encoder are required. Without Dialogs every dialog counts as canceled;
// Files defaults to the local filesystem and Notifier to the logger.
type Deps struct {
	Normalizer    Normalizer
	Decoder       Decoder
	Encoder       Encoder
	Clipboard     platform.Clipboard
	TextClipboard platform.TextClipboard
	Files         platform.FileIO
	Dialogs       platform.Dialogs
	Notifier      platform.Notifier
	Logger        *slog.Logger
}

// Options tune the controller.
type Options struct {
	// Size is the canvas edge length passed to the encoder.
	Size int
	// SaveName is the default file name offered by the save dialog.
	SaveName string
}

// DefaultOptions returns the defaults used by the desktop flow.
func DefaultOptions() Options {
	return Options{Size: qrgen.DefaultSize, SaveName: "qrcode.png"}
}

// Controller is safe for concurrent use. Scans run outside the lock and
// store their outcome on completion, so overlapping scans resolve last write
// wins. Events are published under the state lock, so subscribers see them
// in the order the state changed.
type Controller struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	status    scan.Outcome
	generated *qrgen.Generated
	pending   string

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a controller in its initial state.
func New(deps Deps, opts Options) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Dialogs == nil {
		deps.Dialogs = platform.PresetDialogs{}
	}
	if deps.Files == nil {
		deps.Files = platform.OSFiles{}
	}
	if deps.Notifier == nil {
		deps.Notifier = platform.LogNotifier{Logger: deps.Logger}
	}
	def := DefaultOptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.SaveName == "" {
		opts.SaveName = def.SaveName
	}
	return &Controller{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger,
		status: scan.Initial(),
		subs:   make(map[int]chan Event),
	}
}

// Status returns the current scan outcome.
func (c *Controller) Status() scan.Outcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Generated returns the current QR code, or nil before the first successful
// Generate.
func (c *Controller) Generated() *qrgen.Generated {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generated
}

// PendingText returns the text buffer that Generate encodes.
func (c *Controller) PendingText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending
}

// Size returns the canvas size passed to the encoder.
func (c *Controller) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts.Size
}

// SetSize changes the canvas size for subsequent Generate calls. Sizes
// outside 1..qrgen.MaxSize are rejected with an InvalidInput *qrgen.EncodeError
// and leave the size unchanged.
func (c *Controller) SetSize(size int) error {
	if size <= 0 || size > qrgen.MaxSize {
		return &qrgen.EncodeError{
			Kind: qrgen.KindInvalidInput,
			Err:  fmt.Errorf("size %d outside 1..%d", size, qrgen.MaxSize),
		}
	}
	c.mu.Lock()
	c.opts.Size = size
	c.mu.Unlock()
	return nil
}

// SetText replaces the pending text. Empty input is ignored.
func (c *Controller) SetText(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = text
	c.publish(Event{Type: EventText, Trigger: "input", Text: text})
}
