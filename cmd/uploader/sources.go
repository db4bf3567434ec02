// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/pipeline"
)

var errNoImages = errors.New("no image files found")

// readSources lists the images directly inside dir in natural order.
func readSources(dir string) ([]pipeline.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var sources []pipeline.Source
	for _, e := range entries {
		if e.IsDir() || !imaging.IsImageFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		sources = append(sources, pipeline.Source{
			Name: e.Name(),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, errNoImages)
	}
	pipeline.SortSources(sources)
	return sources, nil
}

// progressPrinter renders pipeline progress on a single terminal line.
type progressPrinter struct {
	out io.Writer
}

func (p progressPrinter) update(s pipeline.Progress) {
	fmt.Fprintf(p.out, "\r%d/%d pages", s.Completed, s.Total)
	if s.Retries > 0 {
		fmt.Fprintf(p.out, ", %d retries", s.Retries)
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.out, ", %d failed", s.Failed)
	}
}

func (p progressPrinter) done() {
	fmt.Fprintln(p.out)
}
