// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// HTTPSink uploads pages to a Mangashelf server. Requests are throttled by a
// token bucket so a large chapter does not trip the server's rate limit.
type HTTPSink struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPSink creates a sink for the server at baseURL. A non-positive rps disables throttling.
func NewHTTPSink(baseURL, token string, rps float64, burst int, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-2xx server response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

func (s *HTTPSink) chapterURL(chapterID string, parts ...string) string {
	return s.baseURL + "/api/v1/admin/chapters/" + url.PathEscape(chapterID) + "/" + strings.Join(parts, "/")
}

// IdempotencyHeader carries Page.Token on page uploads. The server derives
// the object key from it, so a retried PUT overwrites its own object.
const IdempotencyHeader = "Idempotency-Key"

// do sends the request and decodes the envelope's data into out.
func (s *HTTPSink) do(ctx context.Context, method, target, contentType string, header http.Header, body []byte, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("build request: %w", err))
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		if env.Error != nil {
			se.Code, se.Message = env.Error.Code, env.Error.Message
		}
		if retryableStatus(resp.StatusCode) {
			return se
		}
		return Permanent(se)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return Permanent(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// Upload implements Sink with PUT /api/v1/admin/chapters/{id}/pages/{page}.
func (s *HTTPSink) Upload(ctx context.Context, p Page) (string, error) {
	var staged struct {
		ObjectKey string `json:"object_key"`
	}
	target := s.chapterURL(p.ChapterID, "pages", strconv.Itoa(p.Index))
	var header http.Header
	if p.Token != "" {
		header = http.Header{IdempotencyHeader: []string{p.Token}}
	}
	if err := s.do(ctx, http.MethodPut, target, "image/webp", header, p.Data, &staged); err != nil {
		return "", err
	}
	if staged.ObjectKey == "" {
		return "", Permanent(fmt.Errorf("server response has no object_key"))
	}
	return staged.ObjectKey, nil
}

// FinalizePage is one entry of a finalize request.
type FinalizePage struct {
	ObjectKey string `json:"object_key"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int64  `json:"bytes"`
}

// FinalizeRequest is the body of POST /api/v1/admin/chapters/{id}/pages/finalize.
type FinalizeRequest struct {
	Pages []FinalizePage `json:"pages"`
}

// NewFinalizeRequest lists results in page order.
func NewFinalizeRequest(results []PageResult) FinalizeRequest {
	pages := make([]FinalizePage, len(results))
	for i, r := range results {
		pages[i] = FinalizePage{ObjectKey: r.ObjectKey, Width: r.Width, Height: r.Height, Bytes: r.Bytes}
	}
	return FinalizeRequest{Pages: pages}
}

// Finalize replaces the chapter's page set with results.
func (s *HTTPSink) Finalize(ctx context.Context, chapterID string, results []PageResult) error {
	body, err := json.Marshal(NewFinalizeRequest(results))
	if err != nil {
		return fmt.Errorf("encode finalize request: %w", err)
	}
	return s.do(ctx, http.MethodPost, s.chapterURL(chapterID, "pages", "finalize"), "application/json", nil, body, nil)
}
