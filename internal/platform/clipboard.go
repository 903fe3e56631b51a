package platform

import (
	"context"
	"fmt"
	"sync"

	textclip "github.com/atotto/clipboard"
	imgclip "golang.design/x/clipboard"
)

// SystemClipboard is the OS clipboard. Images go through golang.design/x/clipboard,
// which exchanges PNG on every platform; text goes through atotto/clipboard.
type SystemClipboard struct {
	once    sync.Once
	initErr error
}

// NewSystemClipboard returns a clipboard that initializes lazily on first
// image access, so text-only and headless runs never touch the display.
func NewSystemClipboard() *SystemClipboard { return &SystemClipboard{} }

func (c *SystemClipboard) init() error {
	c.once.Do(func() {
		if err := imgclip.Init(); err != nil {
			c.initErr = fmt.Errorf("clipboard unavailable: %w", err)
		}
	})
	return c.initErr
}

// ReadImage returns the PNG currently on the clipboard, or nil when the
// clipboard holds no image.
func (c *SystemClipboard) ReadImage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return imgclip.Read(imgclip.FmtImage), nil
}

// WriteImage replaces the clipboard content with png.
func (c *SystemClipboard) WriteImage(ctx context.Context, png []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.init(); err != nil {
		return err
	}
	imgclip.Write(imgclip.FmtImage, png)
	return nil
}

// WriteText replaces the clipboard content with text.
func (c *SystemClipboard) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if textclip.Unsupported {
		return fmt.Errorf("text clipboard unsupported on this system")
	}
	if err := textclip.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard text: %w", err)
	}
	return nil
}

// MemoryClipboard is an in-process clipboard for headless use and tests.
type MemoryClipboard struct {
	mu    sync.Mutex
	image []byte
	text  string
}

func (m *MemoryClipboard) ReadImage(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.image...), nil
}

func (m *MemoryClipboard) WriteImage(_ context.Context, png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.image = append([]byte(nil), png...)
	return nil
}

func (m *MemoryClipboard) WriteText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}

// Text returns the last text written.
func (m *MemoryClipboard) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}
