package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/controller"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/scan"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [FILE]",
	Short: "Decode a QR code from an image",
	Long: `Decode the QR code in an image file, the clipboard, a link or a data URI.

Supported formats: PNG, JPEG, GIF, BMP, TIFF, WebP

The outcome is always printed; a missing image or a picture without a code
is reported, not treated as a failure.

Examples:
  qrkit scan photo.jpg
  qrkit scan --clipboard --copy
  qrkit scan --uri https://example.com/code.png --format json
  qrkit scan --uri "data:image/png;base64,iVBORw0..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		log := GetLogger()

		fromClipboard, _ := cmd.Flags().GetBool("clipboard")
		uri, _ := cmd.Flags().GetString("uri")
		copyText, _ := cmd.Flags().GetBool("copy")

		sources := 0
		if len(args) == 1 {
			sources++
		}
		if fromClipboard {
			sources++
		}
		if uri != "" {
			sources++
		}
		if sources != 1 {
			return errors.New("exactly one of FILE, --clipboard or --uri is required")
		}

		format := cfg.Output.Format
		validFormats := []string{outputFormatText, outputFormatJSON}
		if !slices.Contains(validFormats, format) {
			return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(validFormats, ", "))
		}

		dialogs := platform.PresetDialogs{}
		if len(args) == 1 {
			dialogs.OpenPath = args[0]
		}
		ctrl := newController(cfg, log, appOptions{Dialogs: dialogs, Notices: cmd.ErrOrStderr()})
		ctx := commandContext(cmd)

		var out scan.Outcome
		switch {
		case fromClipboard:
			out = ctrl.ScanClipboard(ctx)
		case uri != "":
			var err error
			out, err = ctrl.Drop(ctx, imagesource.NewURIDrop(uri))
			if errors.Is(err, controller.ErrUnsupportedDrop) {
				return fmt.Errorf("--uri holds no link: %q", uri)
			}
		default:
			out, _ = ctrl.OpenFile(ctx)
		}

		if err := writeOutcome(cmd.OutOrStdout(), format, out); err != nil {
			return err
		}

		if copyText && out.OK() {
			// Failures are already reported through the notifier.
			if err := ctrl.CopyResult(ctx); err != nil {
				log.Debug("Copy of decoded text skipped", "error", err)
			}
		}
		return nil
	},
}

// writeOutcome prints the outcome: the decoded text or the status message in
// text mode, the full outcome object in json mode.
func writeOutcome(w io.Writer, format string, out scan.Outcome) error {
	if format == outputFormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintln(w, out.Message())
	return err
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("clipboard", false, "decode the image on the clipboard")
	scanCmd.Flags().String("uri", "", "decode the image at a http(s) link or data URI")
	scanCmd.Flags().Bool("copy", false, "copy the decoded text to the clipboard")
	scanCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	scanCmd.Flags().Bool("try-harder", true, "spend more time looking for rotated or small codes")
	scanCmd.Flags().Int("max-dimension", 4096, "downscale larger images to this many pixels per side (0 disables)")
	scanCmd.Flags().Int("max-pixels", 50_000_000, "reject images with more pixels than this before decoding (0 disables)")
	scanCmd.Flags().Duration("fetch-timeout", 0, "timeout for downloading --uri links (0 waits indefinitely)")
}
