package controller

import (
	"context"

	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/scan"
)

// ScanClipboard decodes the image currently on the clipboard.
func (c *Controller) ScanClipboard(ctx context.Context) scan.Outcome {
	return c.scanSource(ctx, "clipboard", imagesource.ClipboardBitmap())
}

// OpenFile asks for an image file and decodes it. A canceled dialog leaves
// the scan status untouched and reports ok=false.
func (c *Controller) OpenFile(ctx context.Context) (scan.Outcome, bool) {
	res, err := c.deps.Dialogs.ShowOpen(ctx, platform.OpenOptions{
		Title:   "Open QR code image",
		Filters: []platform.FileFilter{platform.ImageFilter},
	})
	if err != nil {
		c.logger.Error("Open dialog failed", "trigger", "open", "error", err)
		c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelError, Message: "could not open file dialog"})
		return c.Status(), false
	}
	if res.Canceled || len(res.Paths) == 0 {
		c.logger.Debug("Open dialog canceled", "trigger", "open")
		return c.Status(), false
	}
	return c.scanSource(ctx, "open", imagesource.FilePath(res.Paths[0])), true
}

// Drop decodes a drag-and-drop payload. Links take precedence over files and
// only the first file is read. Payloads with neither are ignored.
func (c *Controller) Drop(ctx context.Context, payload imagesource.DropPayload) (scan.Outcome, error) {
	src, ok := imagesource.ResolveDrop(payload)
	if !ok {
		c.logger.Debug("Ignoring drop", "trigger", "drop", "types", payload.Types)
		return c.Status(), ErrUnsupportedDrop
	}
	return c.scanSource(ctx, "drop", src), nil
}

// ScanSource decodes an already resolved source.
func (c *Controller) ScanSource(ctx context.Context, src imagesource.Source) scan.Outcome {
	return c.scanSource(ctx, "source", src)
}

// CopyResult copies the decoded text of the last successful scan.
func (c *Controller) CopyResult(ctx context.Context) error {
	st := c.Status()
	if !st.OK() {
		return ErrNoResult
	}
	if c.deps.TextClipboard == nil {
		return &PersistError{Kind: PersistIoFailure, Op: "copy text", Err: errTextClipboardUnavailable}
	}
	if err := c.deps.TextClipboard.WriteText(ctx, st.Text); err != nil {
		c.logger.Error("Copying decoded text failed", "trigger", "copy-result", "error", err)
		c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelError, Message: "could not copy text"})
		return &PersistError{Kind: PersistIoFailure, Op: "copy text", Err: err}
	}
	c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelInfo, Message: "text copied to clipboard"})
	return nil
}

// scanSource runs normalization and decoding without holding the state lock,
// then stores the outcome.
func (c *Controller) scanSource(ctx context.Context, trigger string, src imagesource.Source) scan.Outcome {
	c.logger.Debug("Scanning", "trigger", trigger, "source", src.Kind.String())

	img, err := c.deps.Normalizer.Normalize(ctx, src)
	out := c.deps.Decoder.Resolve(ctx, img, err)

	switch out.Status {
	case scan.StatusSuccess:
		c.logger.Info("Decoded QR code", "trigger", trigger, "source", src.Kind.String(), "length", len(out.Text))
	case scan.StatusSourceError:
		c.logger.Error("Scan failed", "trigger", trigger, "source", src.Kind.String(), "error", out.Err)
	default:
		c.logger.Debug("Scan finished", "trigger", trigger, "source", src.Kind.String(), "status", out.Status.String())
	}

	c.mu.Lock()
	c.status = out
	c.publish(Event{Type: EventScan, Trigger: trigger, Status: out})
	c.mu.Unlock()
	return out
}
