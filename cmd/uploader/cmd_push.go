// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/journal"
	"github.com/tomtom215/mangashelf/internal/pipeline"
)

var pushFlags struct {
	server      string
	token       string
	chapter     string
	journalPath string
	concurrency int
	retries     int
	retryDelay  time.Duration
	rps         float64
	maxWidth    int
	quality     int
	keepJournal bool
}

var pushCmd = &cobra.Command{
	Use:   "push DIR",
	Short: "Convert the images in DIR and replace a chapter's pages with them",
	Long: "Converts every image in DIR to WebP in natural filename order, uploads\n" +
		"each page to the server and then finalizes the chapter's page set.\n" +
		"Completed uploads are journaled so an interrupted push resumes.\n" +
		"A page is reused from the journal only when its source bytes,\n" +
		"--max-width and --quality all match; retried uploads reuse their\n" +
		"object on the server.",
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func init() {
	f := pushCmd.Flags()
	f.StringVar(&pushFlags.server, "server", "", "Server base URL (required)")
	f.StringVar(&pushFlags.token, "token", os.Getenv("MANGASHELF_TOKEN"), "Bearer token of an uploader or admin account")
	f.StringVar(&pushFlags.chapter, "chapter", "", "Chapter ID (required)")
	f.StringVar(&pushFlags.journalPath, "journal", defaultJournalPath(), "Upload journal directory")
	f.IntVar(&pushFlags.concurrency, "concurrency", 4, "Pages processed in parallel")
	f.IntVar(&pushFlags.retries, "retries", 3, "Upload retries per page")
	f.DurationVar(&pushFlags.retryDelay, "retry-delay", time.Second, "Initial retry backoff")
	f.Float64Var(&pushFlags.rps, "rps", 5, "Upload requests per second (0 for unlimited)")
	f.IntVar(&pushFlags.maxWidth, "max-width", 1600, "Downscale wider pages to this width")
	f.IntVar(&pushFlags.quality, "quality", 82, "WebP quality (1-100)")
	f.BoolVar(&pushFlags.keepJournal, "keep-journal", false, "Keep journal entries after a successful finalize")

	_ = pushCmd.MarkFlagRequired("server")
	_ = pushCmd.MarkFlagRequired("chapter")
}

func defaultJournalPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".mangashelf-journal"
	}
	return filepath.Join(dir, "mangashelf", "journal")
}

func runPush(cmd *cobra.Command, args []string) error {
	if pushFlags.token == "" {
		return fmt.Errorf("--token or MANGASHELF_TOKEN is required")
	}
	sources, err := readSources(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := os.MkdirAll(pushFlags.journalPath, 0o750); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	j, err := journal.Open(pushFlags.journalPath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	sink := pipeline.NewHTTPSink(pushFlags.server, pushFlags.token, pushFlags.rps, pushFlags.concurrency, nil)
	progress := progressPrinter{out: cmd.ErrOrStderr()}
	p := pipeline.New(pipeline.Config{
		Concurrency: pushFlags.concurrency,
		MaxRetries:  pushFlags.retries,
		RetryDelay:  pushFlags.retryDelay,
		Image:       imaging.Options{MaxWidth: pushFlags.maxWidth, Quality: pushFlags.quality},
	}, sink, pipeline.WithJournal(j), pipeline.WithProgress(progress.update))

	results, err := p.Run(ctx, pushFlags.chapter, sources)
	progress.done()
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if err := sink.Finalize(ctx, pushFlags.chapter, results); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	skipped := 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Chapter %s: %d pages finalized (%d resumed from journal)\n",
		pushFlags.chapter, len(results), skipped)

	if !pushFlags.keepJournal {
		if _, err := j.Forget(pushFlags.chapter); err != nil {
			return fmt.Errorf("clear journal: %w", err)
		}
	}
	return nil
}
