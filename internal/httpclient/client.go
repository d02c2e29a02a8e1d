package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/useragent"
)

// StatusError reports a non-2xx response from a source.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client is the shared fetch utility for source adapters. Every request
// carries a freshly rotated User-Agent and the standard header set; the
// timeout is a hard cap on the whole request.
type Client struct {
	http    *http.Client
	rotator *useragent.Rotator
	logger  arbor.ILogger
}

// New creates a client with the given request timeout.
func New(timeout time.Duration, rotator *useragent.Rotator, logger arbor.ILogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		rotator: rotator,
		logger:  logger,
	}
}

// Get fetches url and returns the response body. Transport failures are
// returned wrapped; non-2xx responses are returned as *StatusError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", c.rotator.Random())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Connection", "keep-alive")

	c.logger.Debug().Str("url", url).Msg("Fetching")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	// Setting Accept-Encoding explicitly disables the transport's transparent
	// decompression, so decode the body here.
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode gzip response from %s: %w", url, err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, nil
}
