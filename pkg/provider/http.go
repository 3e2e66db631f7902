package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
)

// transientError marks failures worth retrying: network errors, 429s,
// and 5xx responses.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// httpBackend is the transport shared by the Anthropic and OpenAI
// clients: a single POST endpoint taking JSON bodies, with exponential
// backoff on transient failures.
type httpBackend struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	headers    map[string]string
	// apiErrMsg extracts a human-readable message from an API error
	// payload; empty means fall back to the raw body.
	apiErrMsg func([]byte) string
}

func newHTTPBackend(endpoint string) httpBackend {
	return httpBackend{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 60 * time.Second},
		maxRetries: defaultMaxRetries,
	}
}

// post sends the body once and classifies the outcome.
func (b *httpBackend) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &transientError{fmt.Errorf("sending HTTP request: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{fmt.Errorf("reading response body: %w", err)}
	}
	if resp.StatusCode == http.StatusOK {
		return payload, nil
	}

	msg := string(payload)
	if b.apiErrMsg != nil {
		if m := b.apiErrMsg(payload); m != "" {
			msg = m
		}
	}
	statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &transientError{statusErr}
	}
	return nil, statusErr
}

// postWithRetry retries transient failures, doubling the delay each
// attempt. The label names the backend in the give-up error.
func (b *httpBackend) postWithRetry(ctx context.Context, label string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		payload, err := b.post(ctx, body)
		if err == nil {
			return payload, nil
		}
		var te *transientError
		if !errors.As(err, &te) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%s API request failed after %d attempts: %w", label, b.maxRetries+1, lastErr)
}
