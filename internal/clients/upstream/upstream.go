// Package upstream holds the shared plumbing for outbound service calls:
// retry with backoff, JSON decoding, and an error taxonomy the HTTP layer
// maps onto 502/503/504.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Sentinel categories for upstream failures. The gateway translates them:
// ErrBadPayload → 502, ErrUnreachable → 503, ErrTimeout → 504.
var (
	ErrBadPayload  = errors.New("upstream payload invalid")
	ErrUnreachable = errors.New("upstream unreachable")
	ErrTimeout     = errors.New("upstream timeout")
)

// StatusError is a non-2xx upstream response that survived retries.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

const (
	maxAttempts  = 3
	retryBackoff = time.Second
)

// retryable reports whether a status code is worth another attempt.
func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// GetJSON performs a GET with retry and decodes the response body into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	return DoJSON(ctx, client, http.MethodGet, url, nil, out)
}

// PostJSON performs a POST with a JSON payload and retry.
func PostJSON(ctx context.Context, client *http.Client, url string, payload, out interface{}) error {
	return DoJSON(ctx, client, http.MethodPost, url, payload, out)
}

// DoJSON performs a request with retry and decodes the response into out.
// Retries run with constant backoff on 429/500/502/503/504 and on transport
// errors; the context bounds the whole call including waits. payload (when
// non-nil) is JSON-encoded fresh for every attempt; a nil out discards the
// body.
func DoJSON(ctx context.Context, client *http.Client, method, url string, payload, out interface{}) error {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request payload: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return classifyCtx(ctx.Err())
			case <-time.After(retryBackoff):
			}
		}

		var body io.Reader
		if encoded != nil {
			body = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = classifyTransport(err)
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		if retryable(resp.StatusCode) {
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: string(b)}
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return nil
	}

	return lastErr
}

// classifyTransport folds a transport error into the taxonomy.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func classifyCtx(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
