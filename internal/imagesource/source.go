// Package imagesource turns the places a QR code image can come from
// (clipboard, files, dropped URIs and data URIs) into one canonical RGBA
// pixel buffer the decoder can consume.
package imagesource

import (
	"strings"
)

// Kind identifies the variant of a Source.
type Kind int

const (
	KindUnknown Kind = iota
	KindClipboard
	KindFile
	KindDroppedFile
	KindDroppedURI
	KindDroppedBase64
)

// String returns the stable name used in logs and JSON output.
func (k Kind) String() string {
	switch k {
	case KindClipboard:
		return "clipboard"
	case KindFile:
		return "file"
	case KindDroppedFile:
		return "dropped-file"
	case KindDroppedURI:
		return "dropped-uri"
	case KindDroppedBase64:
		return "dropped-base64"
	default:
		return "unknown"
	}
}

// Source is a tagged variant describing where an image should be read from.
// Only the field matching Kind is meaningful. Sources are built per user
// action through the constructors below and discarded after normalization.
type Source struct {
	Kind Kind
	Path string // KindFile, KindDroppedFile
	URI  string // KindDroppedURI, KindDroppedBase64
}

// ClipboardBitmap reads whatever image is currently on the system clipboard.
func ClipboardBitmap() Source { return Source{Kind: KindClipboard} }

// FilePath reads an image file chosen through an open dialog.
func FilePath(path string) Source { return Source{Kind: KindFile, Path: path} }

// DroppedFile reads an image file dropped onto the scan area.
func DroppedFile(path string) Source { return Source{Kind: KindDroppedFile, Path: path} }

// DroppedURI fetches a remote image referenced by a dropped link.
func DroppedURI(uri string) Source { return Source{Kind: KindDroppedURI, URI: uri} }

// DroppedBase64 decodes a dropped data:image URI in memory.
func DroppedBase64(uri string) Source { return Source{Kind: KindDroppedBase64, URI: uri} }

// Drag payload type names as reported by drag-and-drop events.
const (
	TypeURIList = "text/uri-list"
	TypeFiles   = "Files"
)

// DropPayload is the raw content of a drop event before it is resolved into
// a Source.
type DropPayload struct {
	Types   []string
	URIList string
	Files   []string
}

// NewURIDrop builds the payload a browser produces when a link or inline
// image is dropped.
func NewURIDrop(uri string) DropPayload {
	return DropPayload{Types: []string{TypeURIList}, URIList: uri}
}

// NewFileDrop builds the payload produced when files are dropped.
func NewFileDrop(paths ...string) DropPayload {
	return DropPayload{Types: []string{TypeFiles}, Files: paths}
}

func (p DropPayload) has(typ string) bool {
	for _, t := range p.Types {
		if t == typ {
			return true
		}
	}
	return false
}

// ResolveDrop maps a drop payload to a Source. The resolution order is fixed
// policy regardless of the order the event lists its types in:
//
//  1. a text/uri-list whose first entry is a data:image URI -> DroppedBase64
//  2. any other text/uri-list entry -> DroppedURI
//  3. Files -> DroppedFile of the first file only
//
// It reports false when the payload carries nothing usable.
func ResolveDrop(p DropPayload) (Source, bool) {
	if p.has(TypeURIList) {
		if uri := firstURI(p.URIList); uri != "" {
			if IsImageDataURI(uri) {
				return DroppedBase64(uri), true
			}
			return DroppedURI(uri), true
		}
	}
	if p.has(TypeFiles) && len(p.Files) > 0 && p.Files[0] != "" {
		return DroppedFile(p.Files[0]), true
	}
	return Source{}, false
}

// firstURI returns the first entry of a text/uri-list body, skipping blank
// lines and '#' comments.
func firstURI(list string) string {
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}
