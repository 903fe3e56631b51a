package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
)

// manifestEntry records the outcome a scan of one fixture should produce.
type manifestEntry struct {
	File   string `json:"file"`
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
}

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir           = flag.String("out", "testdata/images", "Output directory, relative to the project root")
		generateImages   = flag.Bool("images", true, "Generate fixture images")
		generateManifest = flag.Bool("manifest", true, "Write manifest.json with the expected scan outcomes")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate QR fixture images for qrkit testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                     # Generate images and manifest\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -manifest=false     # Generate only images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/fixtures  # Write somewhere else\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	slog.Info("Starting test data generation...")

	if *verbose {
		slog.Info("Options", "out", *outDir, "images", *generateImages, "manifest", *generateManifest)
	}

	dir := *outDir
	if !filepath.IsAbs(dir) {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		if *verbose {
			slog.Info("Project root", "path", root)
		}
		dir = filepath.Join(root, dir)
	}

	fixtures := testutil.StandardFixtures()

	if *generateImages {
		paths, err := testutil.WriteFixtures(dir, fixtures)
		if err != nil {
			slog.Error("Failed to generate fixture images", "error", err)
			os.Exit(1)
		}
		slog.Info("✓ Generated fixture images", "count", len(paths), "dir", dir)
	}

	if *generateManifest {
		if err := writeManifest(dir, fixtures); err != nil {
			slog.Error("Failed to write manifest", "error", err)
			os.Exit(1)
		}
		slog.Info("✓ Wrote manifest", "path", filepath.Join(dir, "manifest.json"))
	}

	slog.Info("Test data generation completed successfully!")
}

func writeManifest(dir string, fixtures []testutil.Fixture) error {
	entries := make([]manifestEntry, 0, len(fixtures))
	for _, f := range fixtures {
		e := manifestEntry{File: f.Name, Status: scan.StatusSuccess.String(), Text: f.Text}
		if f.Text == "" {
			e.Status = scan.StatusNoCode.String()
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := testutil.EnsureDir(dir); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o600)
}
