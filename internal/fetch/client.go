package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent = "iss-tracker/1.0"

	// maxBodyBytes bounds how much of an upstream body is read. Both APIs
	// answer with well under a kilobyte.
	maxBodyBytes = 1 << 20
)

// Doer is the subset of *http.Client used by the fetchers.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// get issues a single GET bounded by timeout and returns the body of a 2xx
// response. Every failure is classified as KindNetwork; callers classify
// body problems themselves.
func get(ctx context.Context, client Doer, op, rawURL string, query url.Values, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, networkError(op, fmt.Errorf("failed to create request: %w", err))
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, networkError(op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, networkError(op, &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        redact(req.URL),
			Message:    strings.TrimSpace(string(body)),
		})
	}

	return body, nil
}

// redact strips secrets from a URL before it ends up in an error or log line.
func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		c.RawQuery = q.Encode()
	}
	return c.String()
}
