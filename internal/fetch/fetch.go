package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const listingReferer = "https://listado.mercadolibre.com.co/"

// ErrExhausted is returned once every retry attempt has been used up.
// Callers treat it as "try the next strategy", never as fatal.
var ErrExhausted = errors.New("fetch: attempts exhausted")

// BadStatusError reports a non-2xx response that is not retryable.
type BadStatusError struct {
	Code int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("fetch: unexpected status %d", e.Code)
}

// Result is the outcome of a successful fetch. FinalURL is the URL the
// response actually came from, which differs from the requested one when
// the server redirected (detail pages redirect to canonical product URLs).
type Result struct {
	Body     string
	FinalURL string
}

// Options tune the retry behaviour of a Client.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout:     20 * time.Second,
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		Jitter:      500 * time.Millisecond,
	}
}

// Client issues plain GETs with a rotating browser identity and bounded
// exponential backoff on rate-limit and transport failures.
type Client struct {
	httpClient *http.Client
	identity   IdentitySelector
	opts       Options
	logger     *slog.Logger
}

func NewClient(identity IdentitySelector, opts Options) *Client {
	if identity == nil {
		identity = NewRandomSelector(nil)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultOptions().BaseDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		identity:   identity,
		opts:       opts,
		logger:     slog.Default().With("component", "fetcher"),
	}
}

// SetHTTPClient swaps the underlying HTTP client. Tests use this to install
// a mock transport.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Get fetches url, retrying on 403/429 and transport-level failures with
// exponential backoff. Other non-2xx statuses fail immediately. Exhaustion
// returns ErrExhausted; the caller escalates to the next strategy.
func (c *Client) Get(ctx context.Context, url string) (*Result, error) {
	return c.get(ctx, url, c.headers())
}

// GetJSON is Get with JSON negotiation headers, used for the marketplace's
// public search API.
func (c *Client) GetJSON(ctx context.Context, url string) (*Result, error) {
	h := c.headers()
	h.Set("Accept", "application/json")
	h.Set("Origin", "https://listado.mercadolibre.com.co")
	return c.get(ctx, url, h)
}

func (c *Client) get(ctx context.Context, url string, headers http.Header) (*Result, error) {
	delay := c.opts.BaseDelay
	var lastErr error

	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header = headers.Clone()
		req.Header.Set("User-Agent", c.identity.UserAgent())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Debug("transport failure", "url", url, "attempt", attempt+1, "error", err)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			final := url
			if resp.Request != nil && resp.Request.URL != nil {
				final = resp.Request.URL.String()
			}
			return &Result{Body: string(body), FinalURL: final}, nil
		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &BadStatusError{Code: resp.StatusCode}
			c.logger.Debug("rate limited", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		default:
			return nil, &BadStatusError{Code: resp.StatusCode}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Referer", listingReferer)
	return h
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.opts.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(c.opts.Jitter)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
