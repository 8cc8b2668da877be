// Package upstream holds the JSON-over-HTTP plumbing shared by the adapters
// for the external geocoding, routing and risk services.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/pkg/metrics"
)

const maxBodyBytes = 16 << 20

// Client performs JSON requests against one upstream service.
type Client struct {
	name       string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the transport timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit caps outgoing requests to rps per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New creates a Client. name labels metrics and error messages.
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "saferoute/1.0",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns the upstream label.
func (c *Client) Name() string { return c.name }

// GetJSON issues a GET and decodes a 2xx body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) (int, error) {
	return c.Do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON issues a POST with body encoded as JSON and decodes a 2xx body
// into out.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) (int, error) {
	return c.Do(ctx, http.MethodPost, url, body, out)
}

// Do performs one request. It returns the HTTP status (zero when no response
// arrived) together with any error. Transport failures, non-2xx statuses and
// undecodable bodies are reported as KindUpstreamUnavailable; when ctx is
// done its error is returned unwrapped.
func (c *Client) Do(ctx context.Context, method, url string, body, out any) (status int, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(c.name, start, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, c.unavailable("rate limiter", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s: marshal request: %w", c.name, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("%s: create request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, c.unavailable("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode, c.unavailable(fmt.Sprintf("returned status %d", resp.StatusCode), nil)
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
			if ctx.Err() != nil {
				return resp.StatusCode, ctx.Err()
			}
			return resp.StatusCode, c.unavailable("decode response", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) unavailable(msg string, cause error) error {
	return domain.NewError(domain.KindUpstreamUnavailable, c.name+": "+msg, cause)
}
