package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindUnavailable covers network failures and non-2xx upstream statuses.
	KindUnavailable Kind = iota

	// KindMalformed covers responses whose JSON shape is unexpected.
	KindMalformed

	// KindNotFound means the upstream confirmed no such entity exists.
	KindNotFound
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed_response"
	case KindNotFound:
		return "not_found"
	default:
		return "upstream_unavailable"
	}
}

// Error represents a classified failure from a third-party API.
type Error struct {
	Kind       Kind
	StatusCode int // 0 for network-level failures
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("upstream error (%s): %s", e.Kind, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindUnavailable && (e.StatusCode >= 500 || e.StatusCode == 429)
}

// IsNotFound reports whether err is an upstream not-found error.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}

// unavailable builds an Error for a failure before or during transport.
func unavailable(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// malformed builds an Error for an unexpected response shape.
func malformed(format string, args ...any) *Error {
	return &Error{Kind: KindMalformed, Message: fmt.Sprintf(format, args...)}
}

// notFound builds an Error for an entity the upstream does not know.
func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// doRequest performs a single HTTP request against the provider base URL.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("do request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("read response: %v", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &Error{
			Kind:       KindNotFound,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{
			Kind:       KindUnavailable,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *Error
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET request with retries and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return malformed("unmarshal response: %v", err)
	}

	return nil
}

// getRaw performs a GET request with retries and returns the raw body.
func (c *Client) getRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, malformed("upstream returned invalid JSON")
	}
	return body, nil
}
