// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/pipeline"
)

var convertFlags struct {
	concurrency int
	maxWidth    int
	quality     int
}

var convertCmd = &cobra.Command{
	Use:   "convert DIR OUT",
	Short: "Convert the images in DIR to numbered WebP pages in OUT without uploading",
	Args:  cobra.ExactArgs(2),
	RunE:  runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.IntVar(&convertFlags.concurrency, "concurrency", 4, "Pages processed in parallel")
	f.IntVar(&convertFlags.maxWidth, "max-width", 1600, "Downscale wider pages to this width")
	f.IntVar(&convertFlags.quality, "quality", 82, "WebP quality (1-100)")
}

// dirSink writes pages as OUT/000.webp, OUT/001.webp and so on.
type dirSink struct {
	dir string
}

func (s dirSink) Upload(_ context.Context, p pipeline.Page) (string, error) {
	name := fmt.Sprintf("%03d.webp", p.Index)
	if err := os.WriteFile(filepath.Join(s.dir, name), p.Data, 0o640); err != nil {
		return "", pipeline.Permanent(err)
	}
	return name, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	sources, err := readSources(args[0])
	if err != nil {
		return err
	}
	out := args[1]
	if err := os.MkdirAll(out, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	progress := progressPrinter{out: cmd.ErrOrStderr()}
	p := pipeline.New(pipeline.Config{
		Concurrency: convertFlags.concurrency,
		Image:       imaging.Options{MaxWidth: convertFlags.maxWidth, Quality: convertFlags.quality},
	}, dirSink{dir: out}, pipeline.WithProgress(progress.update))

	results, err := p.Run(ctx, "local", sources)
	progress.done()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(w, "%s -> %s (%dx%d, %d bytes)\n", r.Name, r.ObjectKey, r.Width, r.Height, r.Bytes)
	}
	return nil
}
