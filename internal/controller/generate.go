package controller

import (
	"context"
	"strings"

	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
)

// Generate encodes the pending text. On failure the previous QR code is kept
// and an error notice is shown.
func (c *Controller) Generate(ctx context.Context) (*qrgen.Generated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := c.PendingText()
	if strings.TrimSpace(text) == "" {
		return nil, ErrNothingToGenerate
	}

	g, err := c.deps.Encoder.Encode(text, c.Size())
	if err != nil {
		c.logger.Error("Generating QR code failed", "trigger", "generate", "error", err)
		c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelError, Message: "could not generate QR code"})
		return nil, err
	}

	c.mu.Lock()
	c.generated = g
	c.publish(Event{Type: EventGenerated, Trigger: "generate", Generated: g})
	c.mu.Unlock()
	c.logger.Debug("Generated QR code", "trigger", "generate", "version", g.Version, "size", g.Size)
	return g, nil
}

// Copy writes the generated PNG to the clipboard.
func (c *Controller) Copy(ctx context.Context) error {
	g := c.Generated()
	if g == nil {
		return ErrNothingGenerated
	}
	if c.deps.Clipboard == nil {
		return &PersistError{Kind: PersistIoFailure, Op: "copy", Err: errClipboardUnavailable}
	}
	if err := c.deps.Clipboard.WriteImage(ctx, g.PNG); err != nil {
		c.logger.Error("Copying QR code failed", "trigger", "copy", "error", err)
		c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelError, Message: "could not copy QR code"})
		return &PersistError{Kind: PersistIoFailure, Op: "copy", Err: err}
	}
	c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelInfo, Message: "QR code copied to clipboard"})
	return nil
}

// Save asks for a destination and writes the generated PNG there. It returns
// the written path.
func (c *Controller) Save(ctx context.Context) (string, error) {
	g := c.Generated()
	if g == nil {
		return "", ErrNothingGenerated
	}

	res, err := c.deps.Dialogs.ShowSave(ctx, platform.SaveOptions{
		Title:       "Save QR code",
		DefaultName: c.opts.SaveName,
		Filters:     []platform.FileFilter{{Name: "PNG image", Extensions: []string{"png"}}},
	})
	if err != nil {
		c.logger.Error("Save dialog failed", "trigger", "save", "error", err)
		c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelError, Message: "could not save QR code"})
		return "", &PersistError{Kind: PersistIoFailure, Op: "save", Err: err}
	}
	if res.Canceled || res.Path == "" {
		return "", &PersistError{Kind: PersistDialogCanceled, Op: "save"}
	}

	if err := c.deps.Files.WriteFile(ctx, res.Path, g.PNG); err != nil {
		c.logger.Error("Saving QR code failed", "trigger", "save", "path", res.Path, "error", err)
		c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelError, Message: "could not save QR code"})
		return "", &PersistError{Kind: PersistIoFailure, Op: "save", Err: err}
	}
	c.logger.Info("Saved QR code", "trigger", "save", "path", res.Path)
	c.deps.Notifier.Notify(platform.Notice{Level: platform.LevelInfo, Message: "QR code saved to " + res.Path})
	return res.Path, nil
}
