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
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/journal"
)

func pngPage(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sourcesOf(pages ...[]byte) []Source {
	out := make([]Source, len(pages))
	for i, data := range pages {
		data := data
		out[i] = Source{
			Name: fmt.Sprintf("%02d.png", i+1),
			Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
		}
	}
	return out
}

// fakeSink records uploads. failures[i] is how many times page i fails before succeeding.
type fakeSink struct {
	mu        sync.Mutex
	failures  map[int]int
	permanent map[int]bool
	delay     func(index int) time.Duration
	calls     map[int]int
	total     atomic.Int32
}

func newFakeSink() *fakeSink {
	return &fakeSink{failures: map[int]int{}, permanent: map[int]bool{}, calls: map[int]int{}}
}

func (s *fakeSink) Upload(ctx context.Context, p Page) (string, error) {
	s.total.Add(1)
	s.mu.Lock()
	s.calls[p.Index]++
	n := s.calls[p.Index]
	fail := n <= s.failures[p.Index]
	perm := s.permanent[p.Index]
	s.mu.Unlock()

	if s.delay != nil {
		select {
		case <-time.After(s.delay(p.Index)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if perm {
		return "", Permanent(errors.New("rejected"))
	}
	if fail {
		return "", errors.New("transient")
	}
	return fmt.Sprintf("%s/%03d.webp", p.ChapterID, p.Index), nil
}

func (s *fakeSink) callsFor(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

func testConfig() Config {
	return Config{Concurrency: 4, MaxRetries: 3, RetryDelay: 10 * time.Millisecond, Image: imaging.Options{MaxWidth: 16, Quality: 70}}
}

func newTestPipeline(cfg Config, sink Sink, opts ...Option) (*Pipeline, *[]time.Duration) {
	p := New(cfg, sink, opts...)
	var mu sync.Mutex
	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return ctx.Err()
	}
	return p, &waits
}

func TestRunPreservesOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	pages := make([][]byte, 8)
	for i := range pages {
		pages[i] = pngPage(t, 32, 48, uint8(i))
	}
	sink := newFakeSink()
	sink.delay = func(i int) time.Duration { return time.Duration(8-i) * 2 * time.Millisecond }

	p, _ := newTestPipeline(testConfig(), sink)
	results, err := p.Run(context.Background(), "ch1", sourcesOf(pages...))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != len(pages) {
		t.Fatalf("len(results) = %d", len(results))
	}
	for i, r := range results {
		if r.Index != i || r.Name != fmt.Sprintf("%02d.png", i+1) || r.ObjectKey != fmt.Sprintf("ch1/%03d.webp", i) {
			t.Errorf("results[%d] = %+v", i, r)
		}
		if r.Width != 16 || r.Height != 24 {
			t.Errorf("results[%d] size = %dx%d, want 16x24", i, r.Width, r.Height)
		}
		if r.SHA256 != journal.Hash(pages[i]) {
			t.Errorf("results[%d] sha mismatch", i)
		}
	}
}

func TestRunRetriesWithBackoff(t *testing.T) {
	sink := newFakeSink()
	sink.failures[1] = 2

	var snapshots []Progress
	cfg := testConfig()
	cfg.Concurrency = 1
	p, waits := newTestPipeline(cfg, sink, WithProgress(func(pr Progress) { snapshots = append(snapshots, pr) }))

	if _, err := p.Run(context.Background(), "ch1", sourcesOf(pngPage(t, 8, 8, 1), pngPage(t, 8, 8, 2))); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := sink.callsFor(1); got != 3 {
		t.Errorf("page 1 attempts = %d, want 3", got)
	}
	if diff := cmp.Diff([]time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits); diff != "" {
		t.Errorf("backoff waits mismatch (-want +got):\n%s", diff)
	}
	last := snapshots[len(snapshots)-1]
	if last.Completed != 2 || last.Retries != 2 || last.Failed != 0 || last.Total != 2 {
		t.Errorf("final progress = %+v", last)
	}
}

func TestRunRetriesExhausted(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newFakeSink()
	sink.failures[0] = 100
	cfg := testConfig()
	cfg.MaxRetries = 2
	p, _ := newTestPipeline(cfg, sink)

	results, err := p.Run(context.Background(), "ch1", sourcesOf(pngPage(t, 8, 8, 0)))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("Run() error = %v, want ErrRetriesExhausted", err)
	}
	var pe *PageError
	if !errors.As(err, &pe) || pe.Index != 0 || pe.Name != "01.png" {
		t.Errorf("PageError = %+v", pe)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
	if got := sink.callsFor(0); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRunPermanentErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*fakeSink)
		pages     func(t *testing.T) [][]byte
		wantIndex int
		wantIs    error
	}{
		{
			name:  "decode failure",
			setup: func(*fakeSink) {},
			pages: func(t *testing.T) [][]byte {
				return [][]byte{[]byte("not an image")}
			},
			wantIndex: 0,
			wantIs:    imaging.ErrDecode,
		},
		{
			name:  "sink rejects",
			setup: func(s *fakeSink) { s.permanent[0] = true },
			pages: func(t *testing.T) [][]byte {
				return [][]byte{pngPage(t, 8, 8, 0)}
			},
			wantIndex: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newFakeSink()
			tt.setup(sink)
			p, waits := newTestPipeline(testConfig(), sink)

			_, err := p.Run(context.Background(), "ch1", sourcesOf(tt.pages(t)...))
			var pe *PageError
			if !errors.As(err, &pe) || pe.Index != tt.wantIndex {
				t.Fatalf("Run() error = %v", err)
			}
			if !IsPermanent(err) {
				t.Errorf("error %v is not permanent", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error %v is not %v", err, tt.wantIs)
			}
			if len(*waits) != 0 {
				t.Errorf("retried %d times, want 0", len(*waits))
			}
		})
	}
}

func TestRunFailFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	pages := [][]byte{[]byte("garbage")}
	for i := 0; i < 5; i++ {
		pages = append(pages, pngPage(t, 8, 8, uint8(i)))
	}
	sink := newFakeSink()
	cfg := testConfig()
	cfg.Concurrency = 1

	var last Progress
	p, _ := newTestPipeline(cfg, sink, WithProgress(func(pr Progress) { last = pr }))
	_, err := p.Run(context.Background(), "ch1", sourcesOf(pages...))

	var pe *PageError
	if !errors.As(err, &pe) || pe.Index != 0 {
		t.Fatalf("Run() error = %v, want page 0 failure", err)
	}
	if n := sink.total.Load(); n != 0 {
		t.Errorf("sink called %d times after fail-fast, want 0", n)
	}
	if last.Failed != 1 || last.Completed != 0 {
		t.Errorf("progress = %+v", last)
	}
}

func TestRunProgressMonotonic(t *testing.T) {
	pages := make([][]byte, 6)
	for i := range pages {
		pages[i] = pngPage(t, 8, 8, uint8(i))
	}
	sink := newFakeSink()
	sink.failures[2] = 1

	var snapshots []Progress
	p, _ := newTestPipeline(testConfig(), sink, WithProgress(func(pr Progress) { snapshots = append(snapshots, pr) }))
	if _, err := p.Run(context.Background(), "ch1", sourcesOf(pages...)); err != nil {
		t.Fatal(err)
	}

	prev := Progress{}
	for i, s := range snapshots {
		if s.Completed < prev.Completed || s.Retries < prev.Retries {
			t.Fatalf("snapshot %d went backwards: %+v after %+v", i, s, prev)
		}
		if s.Total != 6 || s.Current == "" {
			t.Errorf("snapshot %d = %+v", i, s)
		}
		prev = s
	}
	if prev.Completed != 6 {
		t.Errorf("final Completed = %d, want 6", prev.Completed)
	}
}

func TestRunCanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := newTestPipeline(testConfig(), newFakeSink())
	if _, err := p.Run(ctx, "ch1", sourcesOf(pngPage(t, 8, 8, 0))); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunEmpty(t *testing.T) {
	p, _ := newTestPipeline(testConfig(), newFakeSink())
	results, err := p.Run(context.Background(), "ch1", nil)
	if err != nil || len(results) != 0 {
		t.Errorf("Run(nil) = %v, %v", results, err)
	}
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	tests := []struct {
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{base, 1, 100 * time.Millisecond},
		{base, 2, 200 * time.Millisecond},
		{base, 3, 400 * time.Millisecond},
		{base, 9, 25600 * time.Millisecond},
		{base, 10, DefaultMaxDelay},
		{base, 64, DefaultMaxDelay},
		{0, 3, 0},
		{base, 0, 0},
	}
	for _, tt := range tests {
		if got := Backoff(tt.base, DefaultMaxDelay, tt.attempt); got != tt.want {
			t.Errorf("Backoff(%v, %d) = %v, want %v", tt.base, tt.attempt, got, tt.want)
		}
	}
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepCtx(canceled) = %v", err)
	}
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepCtx() = %v", err)
	}
}

func TestRunResumesFromJournal(t *testing.T) {
	j, err := journal.Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	pages := [][]byte{pngPage(t, 8, 8, 1), pngPage(t, 8, 8, 2), pngPage(t, 8, 8, 3)}

	first := newFakeSink()
	p1, _ := newTestPipeline(testConfig(), first, WithJournal(j))
	want, err := p1.Run(context.Background(), "ch1", sourcesOf(pages...))
	if err != nil {
		t.Fatal(err)
	}

	second := newFakeSink()
	p2, _ := newTestPipeline(testConfig(), second, WithJournal(j))
	got, err := p2.Run(context.Background(), "ch1", sourcesOf(pages...))
	if err != nil {
		t.Fatal(err)
	}
	if n := second.total.Load(); n != 0 {
		t.Errorf("rerun uploaded %d pages, want 0", n)
	}
	for i := range got {
		if !got[i].Skipped || got[i].ObjectKey != want[i].ObjectKey || got[i].Width != want[i].Width {
			t.Errorf("rerun result %d = %+v, want skipped copy of %+v", i, got[i], want[i])
		}
	}

	pages[1] = pngPage(t, 8, 8, 99)
	third := newFakeSink()
	p3, _ := newTestPipeline(testConfig(), third, WithJournal(j))
	got, err = p3.Run(context.Background(), "ch1", sourcesOf(pages...))
	if err != nil {
		t.Fatal(err)
	}
	if third.total.Load() != 1 || third.callsFor(1) != 1 {
		t.Errorf("changed page uploads = %v, want only page 1", third.calls)
	}
	if got[1].Skipped || !got[0].Skipped || !got[2].Skipped {
		t.Errorf("skip flags = %v %v %v", got[0].Skipped, got[1].Skipped, got[2].Skipped)
	}

	// Other conversion settings produce different pages, so nothing is reused.
	for _, change := range []func(*Config){
		func(c *Config) { c.Image.MaxWidth = 4 },
		func(c *Config) { c.Image.Quality = 30 },
	} {
		cfg := testConfig()
		change(&cfg)
		sink := newFakeSink()
		p, _ := newTestPipeline(cfg, sink, WithJournal(j))
		got, err := p.Run(context.Background(), "ch1", sourcesOf(pages...))
		if err != nil {
			t.Fatal(err)
		}
		if n := sink.total.Load(); n != int32(len(pages)) {
			t.Errorf("run with %+v uploaded %d pages, want %d", cfg.Image, n, len(pages))
		}
		for i := range got {
			if got[i].Skipped {
				t.Errorf("run with %+v reused page %d from the journal", cfg.Image, i)
			}
		}
	}
}

func TestRunGivesEachPageOneToken(t *testing.T) {
	var mu sync.Mutex
	tokens := map[int][]string{}
	sink := sinkFunc(func(ctx context.Context, p Page) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		tokens[p.Index] = append(tokens[p.Index], p.Token)
		if len(tokens[p.Index]) < 3 {
			return "", errors.New("transient")
		}
		return fmt.Sprintf("k%d", p.Index), nil
	})
	p, _ := newTestPipeline(testConfig(), sink)
	if _, err := p.Run(context.Background(), "ch1", sourcesOf(pngPage(t, 8, 8, 1), pngPage(t, 8, 8, 2))); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seen := map[string]bool{}
	for i, ts := range tokens {
		if len(ts) != 3 || ts[0] == "" || ts[0] != ts[1] || ts[1] != ts[2] {
			t.Errorf("page %d tokens = %v, want one token reused by every attempt", i, ts)
		}
		if seen[ts[0]] {
			t.Errorf("page %d shares token %q", i, ts[0])
		}
		seen[ts[0]] = true
	}
}

type sinkFunc func(ctx context.Context, p Page) (string, error)

func (f sinkFunc) Upload(ctx context.Context, p Page) (string, error) { return f(ctx, p) }
