package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/config"
	"github.com/MeKo-Tech/qrkit/internal/controller"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
)

// clipboardBackend is both the image and the text clipboard.
type clipboardBackend interface {
	platform.Clipboard
	platform.TextClipboard
}

// newClipboard is replaced in tests; the system clipboard needs a display.
var newClipboard = func() clipboardBackend {
	return platform.NewSystemClipboard()
}

// SetClipboard makes later invocations use clip instead of the system
// clipboard and returns a function restoring the previous backend. Headless
// callers pass a *platform.MemoryClipboard.
func SetClipboard(clip interface {
	platform.Clipboard
	platform.TextClipboard
}) (restore func()) {
	orig := newClipboard
	newClipboard = func() clipboardBackend { return clip }
	return func() { newClipboard = orig }
}

// appOptions carry the per-command collaborators that are not configuration.
type appOptions struct {
	Dialogs platform.Dialogs
	Notices io.Writer
}

// newController wires the controller from configuration.
func newController(cfg *config.Config, log *slog.Logger, opts appOptions) *controller.Controller {
	clip := newClipboard()
	files := platform.OSFiles{}

	fetcher := platform.NewHTTPFetcher(cfg.Fetch.Timeout)
	fetcher.MaxBytes = cfg.Fetch.MaxBytes
	fetcher.UserAgent = cfg.Fetch.UserAgent

	normalizer := imagesource.NewNormalizer(clip, files, fetcher,
		imagesource.WithLogger(log),
		imagesource.WithMaxDimension(cfg.Scan.MaxDimension),
		imagesource.WithMaxPixels(cfg.Scan.MaxPixels),
	)

	encoder := qrgen.NewGenerator()
	encoder.NormalizeNFC = cfg.Generate.NormalizeNFC

	var notifier platform.Notifier = platform.LogNotifier{Logger: log}
	if opts.Notices != nil {
		notifier = &platform.WriterNotifier{W: opts.Notices}
	}

	return controller.New(controller.Deps{
		Normalizer:    normalizer,
		Decoder:       scan.NewDecoder(barcode.NewBackend(), cfg.Scan.TryHarder),
		Encoder:       encoder,
		Clipboard:     clip,
		TextClipboard: clip,
		Files:         files,
		Dialogs:       opts.Dialogs,
		Notifier:      notifier,
		Logger:        log,
	}, controller.Options{
		Size:     cfg.Generate.Size,
		SaveName: cfg.Generate.SaveName,
	})
}

// commandContext returns the context of cmd; RunE may be called directly in
// tests, where cobra has not set one.
func commandContext(cmd interface{ Context() context.Context }) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
