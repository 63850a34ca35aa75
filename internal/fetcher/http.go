// Package fetcher provides the single rate-limited HTTP client shared by
// every upstream feed. Per-host limiters are global to the process so
// concurrent workers cannot amplify request rates past publisher limits.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/equity-cli/internal/resilience"
)

// Options configures the HTTP client.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	BaseDelay    time.Duration
	RateLimiters map[string]*rate.Limiter

	// Sleep is the backoff sleep used between retries. Injectable so tests
	// run without wall-clock delay. Defaults to resilience.DefaultSleep.
	Sleep resilience.SleepFunc
}

// DefaultRateLimiters returns the per-host request budgets for the feeds
// this tool talks to. SEC fair-access policy allows 10 req/s.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www.sec.gov":  rate.NewLimiter(10, 10),
		"data.sec.gov": rate.NewLimiter(10, 10),
		"stooq.com":    rate.NewLimiter(2, 2),
		"newsapi.org":  rate.NewLimiter(1, 2),
	}
}

// Client is an HTTP fetcher with bounded retry, exponential backoff, and
// per-host rate limiting. Calls are all-or-nothing: a response is returned
// only when the body has been read in full.
type Client struct {
	http     *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
	sleep    resilience.SleepFunc
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "equity-cli/1.0"
	}
	limiters := opts.RateLimiters
	if limiters == nil {
		limiters = DefaultRateLimiters()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = resilience.DefaultSleep
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
		fallback: rate.NewLimiter(5, 5),
		sleep:    sleep,
	}
}

func (c *Client) limiterFor(u *url.URL) *rate.Limiter {
	if lim, ok := c.limiters[u.Host]; ok {
		return lim
	}
	return c.fallback
}

// Get fetches rawURL with optional headers and query params, returning the
// response body. Transient responses (429, 5xx) and transport errors are
// retried with exponential backoff up to the retry budget; the last error
// is returned on exhaustion.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	lim := c.limiterFor(u)

	cfg := resilience.RetryConfig{
		MaxAttempts: c.opts.MaxRetries,
		BaseDelay:   c.opts.BaseDelay,
		Sleep:       c.sleep,
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("fetch failed, backing off",
				zap.String("url", u.Redacted()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		// The shared limiter is the global inter-request delay; every
		// attempt waits on it, including retries.
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}
		return c.do(ctx, u, headers)
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, eris.Wrapf(err, "fetch: retries exhausted for %s", u.Redacted())
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, u *url.URL, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, u.Host), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, u.Redacted())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetch: read body"), 0)
	}
	return body, nil
}
