package platform

import (
	"context"
	"os"
	"path/filepath"
)

// FileFilter restricts a dialog to matching extensions.
type FileFilter struct {
	Name       string
	Extensions []string
}

// OpenOptions configures an open dialog.
type OpenOptions struct {
	Title   string
	Filters []FileFilter
}

// SaveOptions configures a save dialog.
type SaveOptions struct {
	Title       string
	DefaultName string
	Filters     []FileFilter
}

// OpenResult is the outcome of an open dialog.
type OpenResult struct {
	Canceled bool
	Paths    []string
}

// SaveResult is the outcome of a save dialog.
type SaveResult struct {
	Canceled bool
	Path     string
}

// Dialogs shows native file dialogs.
type Dialogs interface {
	ShowOpen(ctx context.Context, opts OpenOptions) (OpenResult, error)
	ShowSave(ctx context.Context, opts SaveOptions) (SaveResult, error)
}

// ImageFilter matches the container formats the scanner can read.
var ImageFilter = FileFilter{
	Name:       "Images",
	Extensions: []string{"png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff", "webp"},
}

// PresetDialogs answers dialogs with paths chosen up front, which is how the
// CLI and the HTTP surface drive the open and save intents. An empty path
// means the user canceled.
type PresetDialogs struct {
	OpenPath string
	SavePath string
}

func (p PresetDialogs) ShowOpen(ctx context.Context, _ OpenOptions) (OpenResult, error) {
	if err := ctx.Err(); err != nil {
		return OpenResult{}, err
	}
	if p.OpenPath == "" {
		return OpenResult{Canceled: true}, nil
	}
	return OpenResult{Paths: []string{p.OpenPath}}, nil
}

// ShowSave returns SavePath. A SavePath naming an existing directory gets the
// dialog's default file name appended.
func (p PresetDialogs) ShowSave(ctx context.Context, opts SaveOptions) (SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return SaveResult{}, err
	}
	if p.SavePath == "" {
		return SaveResult{Canceled: true}, nil
	}
	path := p.SavePath
	if opts.DefaultName != "" && isDir(path) {
		path = filepath.Join(path, opts.DefaultName)
	}
	return SaveResult{Path: path}, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
