// Package platform provides the host integrations used by the controller:
// clipboard, file access, dialogs, notifications and HTTP downloads.
package platform

import "context"

// Clipboard reads and writes encoded (PNG) images on the system clipboard.
type Clipboard interface {
	ReadImage(ctx context.Context) ([]byte, error)
	WriteImage(ctx context.Context, png []byte) error
}

// TextClipboard writes plain text to the system clipboard.
type TextClipboard interface {
	WriteText(ctx context.Context, text string) error
}

// FileIO reads and writes whole files.
type FileIO interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
}

// Getter downloads a remote resource as binary content.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}
