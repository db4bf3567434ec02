// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted is wrapped into the page error when every attempt failed.
var ErrRetriesExhausted = errors.New("upload retries exhausted")

// DefaultMaxDelay caps the backoff between attempts.
const DefaultMaxDelay = 30 * time.Second

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// PageError identifies the page that stopped a run.
type PageError struct {
	Index int
	Name  string
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Backoff returns the wait before retry number attempt (1-based):
// base * 2^(attempt-1), capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
