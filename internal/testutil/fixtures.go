package testutil

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
)

// Fixture describes one generated scan fixture.
type Fixture struct {
	Name    string // file name inside the output directory
	Text    string // payload; empty for fixtures without a symbol
	Size    int
	Variant string // plain, embedded, rotated, jpeg, blank
}

// StandardFixtures is the fixture set written by cmd/generate-test-data.
func StandardFixtures() []Fixture {
	return []Fixture{
		{Name: "qr_plain.png", Text: "https://example.com/qrkit", Size: DefaultQRSize, Variant: "plain"},
		{Name: "qr_embedded.png", Text: "embedded payload 42", Size: 200, Variant: "embedded"},
		{Name: "qr_rotated.png", Text: "ROTATED-QR", Size: DefaultQRSize, Variant: "rotated"},
		{Name: "qr_photo.jpg", Text: "jpeg payload", Size: DefaultQRSize, Variant: "jpeg"},
		{Name: "no_qr.png", Size: DefaultQRSize, Variant: "blank"},
	}
}

// Render produces the encoded file content for the fixture.
func (f Fixture) Render() ([]byte, error) {
	if f.Variant == "blank" {
		return EncodePNG(BlankImage(f.Size, f.Size, color.White))
	}
	img, err := QRImage(f.Text, f.Size)
	if err != nil {
		return nil, err
	}
	switch f.Variant {
	case "plain":
	case "embedded":
		img = EmbedInCanvas(img, f.Size*3, f.Size*2, color.Gray{Y: 230})
	case "rotated":
		img = Rotate90(img)
	case "jpeg":
		return EncodeJPEG(img)
	default:
		return nil, fmt.Errorf("unknown fixture variant %q", f.Variant)
	}
	return EncodePNG(img)
}

// WriteFixtures renders every fixture into dir and returns the written paths.
func WriteFixtures(dir string, fixtures []Fixture) ([]string, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	paths := make([]string, 0, len(fixtures))
	for _, f := range fixtures {
		data, err := f.Render()
		if err != nil {
			return paths, fmt.Errorf("rendering %s: %w", f.Name, err)
		}
		p := filepath.Join(dir, f.Name)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return paths, fmt.Errorf("writing %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

