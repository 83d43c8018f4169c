package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/yolodolo42/walletdash/internal/signing"
)

const (
	DefaultBaseURL   = "https://www.okx.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5.0

	maxResponseBytes = 4 << 20
	maxDetailBytes   = 256
)

// Options tune a Client. Zero values select the defaults.
type Options struct {
	BaseURL string
	// Timeout bounds every call, including time spent waiting on the limiter.
	Timeout time.Duration
	// RateLimit is requests per second; negative disables limiting.
	RateLimit  float64
	HTTPClient *http.Client
	Logger     *zerolog.Logger
	// Now is used for OK-ACCESS-TIMESTAMP; tests pin it.
	Now func() time.Time
}

// Client performs signed calls against the OKX REST API. It is safe for
// concurrent use; independent calls complete in no particular order.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time
}

// NewClient creates a client. Credentials are not validated here: a missing
// field fails each call with KindConfiguration instead of failing startup.
func NewClient(creds Credentials, opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		creds:   creds,
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		logger:  zerolog.Nop(),
		now:     opts.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.Logger != nil {
		c.logger = opts.Logger.With().Str("component", "okx").Logger()
	}

	limit := opts.RateLimit
	if limit == 0 {
		limit = DefaultRateLimit
	}
	if limit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(limit), 1)
	}
	return c
}

// Configured reports whether all four credential fields are present.
func (c *Client) Configured() bool {
	return c.creds.Validate() == nil
}

// CallEndpoint resolves an endpoint name and performs a signed GET with the
// given query. Unknown names and missing credentials fail before any
// network activity.
func (c *Client) CallEndpoint(ctx context.Context, name string, query url.Values) (json.RawMessage, error) {
	ep, err := ParseEndpoint(name)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, ep, query)
}

// Call performs a signed GET against ep.
func (c *Client) Call(ctx context.Context, ep Endpoint, query url.Values) (json.RawMessage, error) {
	path := ep.Path()
	if path == "" {
		return nil, newError(KindUnknownEndpoint, fmt.Sprintf("invalid endpoint %q", ep), nil)
	}
	if err := c.creds.Validate(); err != nil {
		return nil, err
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, "")
}

func (c *Client) do(ctx context.Context, method, requestPath, body string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	logger := c.logger.With().Str("method", method).Str("path", requestPath).Logger()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			logger.Warn().Err(err).Msg("rate limiter wait aborted")
			if ctx.Err() == nil {
				// Wait refuses up front when the deadline cannot be met.
				err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			return nil, transportError(err)
		}
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, reader)
	if err != nil {
		return nil, newError(KindUpstreamFailure, "failed to build request", err)
	}
	req.Header = SignedHeaders(c.creds, SignedRequest{
		Method:    method,
		Path:      requestPath,
		Body:      body,
		Timestamp: signing.Timestamp(c.now()),
	})

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("upstream request failed")
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(err)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:   KindUpstreamFailure,
			Detail: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(data), maxDetailBytes)),
			Status: resp.StatusCode,
		}
	}
	if !json.Valid(data) {
		return nil, &Error{
			Kind:   KindUpstreamFailure,
			Detail: "upstream returned a non-JSON body",
			Status: resp.StatusCode,
		}
	}
	return json.RawMessage(data), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
