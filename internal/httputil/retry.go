// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP transport shared by harvest runs
// and api_direct fetches.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// Response is a completed provider exchange. A Response with an error
// status is still a well-formed outcome; transport failures surface as
// ordinary errors instead.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// OK reports whether the provider answered with a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsXML reports whether the response body is XML, by content type first
// and a cheap body sniff as fallback.
func (r *Response) IsXML() bool {
	if strings.Contains(r.ContentType, "xml") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(string(r.Body)), "<")
}

// retryable reports whether a status is worth another attempt: rate
// limiting and transient server failures.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Send executes one provider request with bounded retries. Retryable
// statuses (429, 5xx) back off exponentially from RetryBaseDelay,
// honoring a Retry-After header when the provider sends one. When
// maxRetries is 0 the default (3) is used. After exhausting retries the
// last response is returned so the caller can inspect it.
func Send(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body string, maxRetries int) (*Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		req, err := buildRequest(ctx, method, url, headers, body)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("sending %s %s: %w", method, url, err)
		}

		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return readResponse(resp)
		}

		delay := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func buildRequest(ctx context.Context, method, url string, headers map[string]string, body string) (*http.Request, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Response{
		Status:      resp.StatusCode,
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// backoff computes the wait before the next attempt: the provider's
// Retry-After seconds when present, else RetryBaseDelay doubling per
// attempt.
func backoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
}
