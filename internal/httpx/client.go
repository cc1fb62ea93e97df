package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/version"
)

// Client is a shared JSON HTTP client with bounded retries for upstream
// provider calls. Retries apply to transport failures, 429s, and 5xx
// responses; everything else returns immediately.
type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  version.UserAgent(),
	}
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, werr.Wrap(werr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		cloneReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, werr.Wrap(werr.CodeInternal, "clone request body", err)
			}
			cloneReq.Body = body
		}

		resp, err := c.httpClient.Do(cloneReq)
		if err != nil {
			lastErr = mapNetError(err)
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return resp.Header, werr.Wrap(werr.CodeUnavailable, "read upstream response", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = werr.New(werr.CodeRateLimited, "upstream rate limited request")
			if attempt < c.retries {
				continue
			}
			return resp.Header, lastErr
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return resp.Header, werr.New(werr.CodeAuth, "upstream authentication failed")
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = werr.New(werr.CodeUnavailable, fmt.Sprintf("upstream unavailable (status %d)", resp.StatusCode))
			if attempt < c.retries {
				continue
			}
			return resp.Header, lastErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail := upstreamErrorDetail(buf)
			if detail == "" {
				detail = fmt.Sprintf("upstream returned status %d", resp.StatusCode)
			}
			return resp.Header, werr.New(werr.CodeUnavailable, detail)
		}

		if out == nil {
			return resp.Header, nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return resp.Header, werr.New(werr.CodeUnavailable, "upstream returned empty response")
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return resp.Header, werr.Wrap(werr.CodeUnavailable, "decode upstream JSON", err)
		}
		return resp.Header, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, werr.New(werr.CodeUnavailable, "request failed")
}

// GetJSON issues a GET with optional headers and decodes the JSON response
// into out.
func GetJSON(ctx context.Context, c *Client, url string, headers map[string]string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, werr.Wrap(werr.CodeInternal, "build request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

// upstreamErrorDetail pulls a human-readable reason out of a 4xx JSON body.
// Aggregator validation failures arrive this way and the detail is worth
// keeping for logs.
func upstreamErrorDetail(buf []byte) string {
	var body struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(buf, &body); err != nil {
		return ""
	}
	switch {
	case body.Reason != "":
		return body.Reason
	case body.Message != "":
		return body.Message
	case body.Error != "":
		return body.Error
	}
	return ""
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return werr.Wrap(werr.CodeUnavailable, "upstream timeout", err)
		}
	}
	return werr.Wrap(werr.CodeUnavailable, "upstream request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
