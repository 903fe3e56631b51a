package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrkit/internal/barcode"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
)

func writeFile(path string, data []byte) error {
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// decodeQR runs the production decoder over an encoded image.
func decodeQR(data []byte) (scan.Outcome, error) {
	img, _, err := imagesource.DecodeContainer(data, 0, imagesource.DefaultMaxPixels)
	if err != nil {
		return scan.Outcome{}, err
	}
	return scan.NewDecoder(barcode.NewBackend(), true).Decode(context.Background(), img), nil
}

func renderQR(text string, size int) ([]byte, error) {
	img, err := testutil.QRImage(text, size)
	if err != nil {
		return nil, err
	}
	return testutil.EncodePNG(img)
}

// theStandardFixturesAreAvailable writes the fixture set into the temp directory.
func (testCtx *TestContext) theStandardFixturesAreAvailable() error {
	_, err := testutil.WriteFixtures(testCtx.Path("images"), testutil.StandardFixtures())
	return err
}

// aQRCodeImageContaining writes a PNG with a QR code for text.
func (testCtx *TestContext) aQRCodeImageContaining(name, text string) error {
	data, err := renderQR(text, testutil.DefaultQRSize)
	if err != nil {
		return err
	}
	return writeFile(testCtx.Path(name), data)
}

// aFileContaining writes arbitrary non-image content.
func (testCtx *TestContext) aFileContaining(name, content string) error {
	return writeFile(testCtx.Path(name), []byte(content))
}

// theClipboardHoldsAQRCodeContaining puts a QR code image on the clipboard.
func (testCtx *TestContext) theClipboardHoldsAQRCodeContaining(text string) error {
	data, err := renderQR(text, testutil.DefaultQRSize)
	if err != nil {
		return err
	}
	return testCtx.Clipboard.WriteImage(context.Background(), data)
}

// theClipboardHoldsABlankImage puts an image without a code on the clipboard.
func (testCtx *TestContext) theClipboardHoldsABlankImage() error {
	img := testutil.BlankImage(120, 120, image.White)
	data, err := testutil.EncodePNG(img)
	if err != nil {
		return err
	}
	return testCtx.Clipboard.WriteImage(context.Background(), data)
}

// theClipboardIsEmpty verifies nothing was placed on the clipboard yet.
func (testCtx *TestContext) theClipboardIsEmpty() error {
	data, err := testCtx.Clipboard.ReadImage(context.Background())
	if err != nil {
		return err
	}
	if len(data) != 0 {
		return errors.New("clipboard already holds an image")
	}
	return nil
}

// theFileShouldExist checks a file in the temp directory.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(testCtx.Path(name)) {
		return fmt.Errorf("file %s does not exist", testCtx.Path(name))
	}
	return nil
}

// theFileShouldBeAPNGOfPixels checks format and dimensions of a written image.
func (testCtx *TestContext) theFileShouldBeAPNGOfPixels(name string, size int) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	return checkPNG(data, size)
}

func checkPNG(data []byte, size int) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("not an image: %w", err)
	}
	if format != "png" {
		return fmt.Errorf("format is %s, want png", format)
	}
	if cfg.Width != size || cfg.Height != size {
		return fmt.Errorf("image is %dx%d, want %dx%d", cfg.Width, cfg.Height, size, size)
	}
	return nil
}

// theFileShouldDecodeTo scans a written image.
func (testCtx *TestContext) theFileShouldDecodeTo(name, text string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	return expectDecoded(data, text)
}

func expectDecoded(data []byte, text string) error {
	out, err := decodeQR(data)
	if err != nil {
		return err
	}
	if !out.OK() || out.Text != text {
		return fmt.Errorf("decoded %s %q, want %q", out.Status, out.Text, text)
	}
	return nil
}

// theClipboardImageShouldDecodeTo scans the image placed on the clipboard.
func (testCtx *TestContext) theClipboardImageShouldDecodeTo(text string) error {
	data, err := testCtx.Clipboard.ReadImage(context.Background())
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("clipboard holds no image")
	}
	return expectDecoded(data, text)
}

// theClipboardTextShouldBe checks the text clipboard.
func (testCtx *TestContext) theClipboardTextShouldBe(text string) error {
	if got := testCtx.Clipboard.Text(); got != text {
		return fmt.Errorf("clipboard text is %q, want %q", got, text)
	}
	return nil
}

// theOutputShouldBeAPNGOfPixels checks PNG bytes written to stdout.
func (testCtx *TestContext) theOutputShouldBeAPNGOfPixels(size int) error {
	return checkPNG([]byte(testCtx.LastOutput), size)
}

// RegisterImageSteps registers image fixture and clipboard steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the standard fixtures are available$`, testCtx.theStandardFixturesAreAvailable)
	sc.Step(`^a QR code image "([^"]*)" containing "([^"]*)"$`, testCtx.aQRCodeImageContaining)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^the clipboard holds a QR code containing "([^"]*)"$`, testCtx.theClipboardHoldsAQRCodeContaining)
	sc.Step(`^the clipboard holds a blank image$`, testCtx.theClipboardHoldsABlankImage)
	sc.Step(`^the clipboard is empty$`, testCtx.theClipboardIsEmpty)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should be a PNG of (\d+) pixels$`, testCtx.theFileShouldBeAPNGOfPixels)
	sc.Step(`^the file "([^"]*)" should decode to "([^"]*)"$`, testCtx.theFileShouldDecodeTo)
	sc.Step(`^the output should be a PNG of (\d+) pixels$`, testCtx.theOutputShouldBeAPNGOfPixels)
	sc.Step(`^the clipboard image should decode to "([^"]*)"$`, testCtx.theClipboardImageShouldDecodeTo)
	sc.Step(`^the clipboard text should be "([^"]*)"$`, testCtx.theClipboardTextShouldBe)
}
