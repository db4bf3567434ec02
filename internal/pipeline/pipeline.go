// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/journal"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
)

// Source is one input page.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Page is a converted page handed to a Sink.
type Page struct {
	ChapterID string
	Index     int
	Data      []byte
	Width     int
	Height    int
	// Token is fixed for every attempt at this page within one run, so a
	// sink can make retried uploads land on the same object.
	Token string
}

// Sink stores a converted page and returns its object key.
type Sink interface {
	Upload(ctx context.Context, p Page) (string, error)
}

// Journal remembers completed uploads across runs.
type Journal interface {
	Lookup(chapterID string, index int, sha string) (*journal.Record, bool, error)
	Record(rec journal.Record) error
}

// PageResult describes one uploaded page. Results are ordered like the sources.
type PageResult struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ObjectKey string `json:"object_key"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int64  `json:"bytes"`
	SHA256    string `json:"sha256"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// Progress is a snapshot of a run. Completed and Failed only grow.
type Progress struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Retries   int    `json:"retries"`
	Current   string `json:"current,omitempty"`
}

// Config tunes a Pipeline.
type Config struct {
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	Image       imaging.Options
}

// ConfigFrom maps the pipeline config section.
func ConfigFrom(c *config.PipelineConfig) Config {
	return Config{
		Concurrency: c.Concurrency,
		MaxRetries:  c.MaxRetries,
		RetryDelay:  c.RetryDelay,
		Image:       imaging.Options{MaxWidth: c.MaxWidth, Quality: c.WebPQuality},
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJournal enables resumable uploads.
func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithProgress registers a callback invoked after every state change.
// Calls are serialized.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.onProgress = fn }
}

// Pipeline runs page conversions and uploads.
type Pipeline struct {
	cfg        Config
	sink       Sink
	journal    Journal
	onProgress func(Progress)
	sleep      func(context.Context, time.Duration) error
}

// New creates a pipeline writing to sink.
func New(cfg Config, sink Sink, opts ...Option) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	p := &Pipeline{cfg: cfg, sink: sink, sleep: sleepCtx}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type tracker struct {
	mu       sync.Mutex
	state    Progress
	callback func(Progress)
}

func (t *tracker) update(current string, fn func(*Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.state)
	t.state.Current = current
	if t.callback != nil {
		t.callback(t.state)
	}
}

// Run processes every source for chapterID. On failure it returns the first
// page error and no results.
func (p *Pipeline) Run(ctx context.Context, chapterID string, sources []Source) ([]PageResult, error) {
	results := make([]PageResult, len(sources))
	tr := &tracker{state: Progress{Total: len(sources)}, callback: p.onProgress}
	log := logging.Ctx(ctx).With().Str("component", "pipeline").Str("chapter_id", chapterID).Logger()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for i, src := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			res, err := p.processPage(gctx, chapterID, i, src, tr)
			if err != nil {
				if gctx.Err() != nil && errors.Is(err, context.Canceled) {
					return err
				}
				metrics.RecordPipelinePage("failed", time.Since(start))
				tr.update(src.Name, func(s *Progress) { s.Failed++ })
				log.Warn().Err(err).Int("page", i).Str("name", src.Name).Msg("Page failed")
				return &PageError{Index: i, Name: src.Name, Err: err}
			}

			results[i] = *res
			outcome := "uploaded"
			if res.Skipped {
				outcome = "skipped"
			}
			metrics.RecordPipelinePage(outcome, time.Since(start))
			tr.update(src.Name, func(s *Progress) { s.Completed++ })
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Info().Int("pages", len(sources)).Msg("Chapter pages processed")
	return results, nil
}

func (p *Pipeline) processPage(ctx context.Context, chapterID string, index int, src Source, tr *tracker) (*PageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := readSource(src)
	if err != nil {
		return nil, err
	}
	sha := journal.Hash(raw)
	digest := p.journalDigest(sha)

	if p.journal != nil {
		rec, ok, err := p.journal.Lookup(chapterID, index, digest)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("page", index).Msg("Journal lookup failed; uploading")
		} else if ok {
			metrics.PipelineJournalHits.Inc()
			return &PageResult{
				Index: index, Name: src.Name, ObjectKey: rec.ObjectKey,
				Width: rec.Width, Height: rec.Height, Bytes: rec.Bytes, SHA256: sha, Skipped: true,
			}, nil
		}
	}

	converted, err := imaging.Convert(bytes.NewReader(raw), p.cfg.Image)
	if err != nil {
		return nil, Permanent(err)
	}

	page := Page{
		ChapterID: chapterID, Index: index, Data: converted.Data,
		Width: converted.Width, Height: converted.Height, Token: uuid.New().String(),
	}
	key, err := p.upload(ctx, page, src.Name, tr)
	if err != nil {
		return nil, err
	}

	res := &PageResult{
		Index: index, Name: src.Name, ObjectKey: key,
		Width: converted.Width, Height: converted.Height, Bytes: int64(len(converted.Data)), SHA256: sha,
	}
	if p.journal != nil {
		if err := p.journal.Record(journal.Record{
			ChapterID: chapterID, Index: index, SHA256: digest, ObjectKey: key,
			Width: res.Width, Height: res.Height, Bytes: res.Bytes,
		}); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("page", index).Msg("Journal write failed")
		}
	}
	return res, nil
}

// journalDigest binds a journal entry to the source bytes and to the
// conversion settings, so changing them re-converts every page.
func (p *Pipeline) journalDigest(sha string) string {
	return journal.Hash([]byte(fmt.Sprintf("%s|w=%d|q=%d", sha, p.cfg.Image.MaxWidth, p.cfg.Image.Quality)))
}

func readSource(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, Permanent(fmt.Errorf("open %s: %w", src.Name, err))
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Permanent(fmt.Errorf("read %s: %w", src.Name, err))
	}
	return data, nil
}

// upload calls the sink until it succeeds, fails permanently or runs out of attempts.
func (p *Pipeline) upload(ctx context.Context, page Page, name string, tr *tracker) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.PipelineRetries.Inc()
			tr.update(name, func(s *Progress) { s.Retries++ })
			if err := p.sleep(ctx, Backoff(p.cfg.RetryDelay, p.cfg.MaxDelay, attempt)); err != nil {
				return "", err
			}
		}

		key, err := p.sink.Upload(ctx, page)
		if err == nil {
			return key, nil
		}
		if IsPermanent(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.cfg.MaxRetries+1, lastErr)
}
