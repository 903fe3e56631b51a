package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/platform"
)

const stdoutPath = "-"

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate TEXT...",
	Short: "Render text as a QR code",
	Long: `Render text as a QR code image.

The arguments are joined with single spaces. Use "-" to read the text from
standard input. Without --output or --copy the code is drawn in the terminal.

Examples:
  qrkit generate "https://example.com"
  qrkit generate hello world --output hello.png --size 512
  echo "from a pipe" | qrkit generate - --output - > code.png
  qrkit generate "wifi secret" --copy`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		log := GetLogger()

		output, _ := cmd.Flags().GetString("output")
		copyImage, _ := cmd.Flags().GetBool("copy")
		terminal, _ := cmd.Flags().GetBool("terminal")
		if output == "" && !copyImage {
			terminal = true
		}
		if output == stdoutPath && terminal {
			return errors.New("--terminal cannot be combined with --output -")
		}

		text := strings.Join(args, " ")
		if len(args) == 1 && args[0] == stdoutPath {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading text from stdin: %w", err)
			}
			text = strings.TrimRight(string(data), "\r\n")
		}

		dialogs := platform.PresetDialogs{}
		if output != "" && output != stdoutPath {
			dialogs.SavePath = output
		}
		ctrl := newController(cfg, log, appOptions{Dialogs: dialogs, Notices: cmd.ErrOrStderr()})
		ctx := commandContext(cmd)

		ctrl.SetText(text)
		g, err := ctrl.Generate(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if terminal {
			if _, err := fmt.Fprint(out, g.TerminalString()); err != nil {
				return err
			}
		}
		switch output {
		case "":
		case stdoutPath:
			if _, err := out.Write(g.PNG); err != nil {
				return fmt.Errorf("writing PNG to stdout: %w", err)
			}
		default:
			if _, err := ctrl.Save(ctx); err != nil {
				return err
			}
		}
		if copyImage {
			if err := ctrl.Copy(ctx); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntP("size", "s", 360, "edge length of the PNG in pixels (at most 2048)")
	generateCmd.Flags().Bool("nfc", false, "normalize the text to Unicode NFC before encoding")
	generateCmd.Flags().StringP("output", "o", "", `write the PNG to this file ("-" for stdout; a directory gets the default name)`)
	generateCmd.Flags().Bool("copy", false, "copy the PNG to the clipboard")
	generateCmd.Flags().Bool("terminal", false, "draw the code in the terminal")
}
