// Package pollution provides a rate-gated, bearer-authenticated client
// for the upstream measurement source
package pollution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"smogwatch/internal/platform/cache"
	perr "smogwatch/internal/platform/errors"
	"smogwatch/internal/platform/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUA        = "smogwatch-aggregator"
	defaultMaxRetry  = 5
	defaultRetryBase = 500 * time.Millisecond

	defaultRateLimit  = 5
	defaultRateWindow = 10 * time.Second
	defaultRateMargin = 50 * time.Millisecond

	defaultPageTTL = 5 * time.Minute
	defaultPageCap = 128

	maxPageLimit = 50

	// refresh the token this long before its actual expiry
	expiryMargin = 5 * time.Second
)

// Options configures the Client
type Options struct {
	BaseURL   string
	Username  string
	Password  string
	UserAgent string
	Timeout   time.Duration

	// Retry config for throttled responses only; other failures
	// propagate immediately
	MaxRetries int
	RetryBase  time.Duration

	// Sliding window rate gate applied to every outbound call
	RateLimit  int
	RateWindow time.Duration
	RateMargin time.Duration

	// Raw page cache keyed by (country, page, limit)
	PageTTL time.Duration
	PageCap int
}

// session is the upstream auth state. Refresh failure drops back to a
// full login
type session struct {
	token        string
	expiresAt    time.Time
	refreshToken string
}

// Client talks to the measurement source. Safe for concurrent use
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)

	// authMu guards sess; rateMu guards calls. Separate locks because a
	// login performed under authMu issues its own gated request
	authMu sync.Mutex
	sess   session

	rateMu sync.Mutex
	calls  []time.Time

	pages *cache.Cache[pageKey, Page]
}

type pageKey struct {
	country string
	page    int
	limit   int
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
	if o.RateWindow <= 0 {
		o.RateWindow = defaultRateWindow
	}
	if o.RateMargin <= 0 {
		o.RateMargin = defaultRateMargin
	}
	if o.PageTTL <= 0 {
		o.PageTTL = defaultPageTTL
	}
	if o.PageCap <= 0 {
		o.PageCap = defaultPageCap
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("pollution"),
		now:   time.Now,
		sleep: time.Sleep,
		pages: cache.New[pageKey, Page](o.PageCap),
	}
}

// CachedPages reports the number of live page cache entries
func (c *Client) CachedPages() int { return c.pages.Len() }

// FetchPage returns one page of measurements for a country, serving
// from the page cache when possible. limit is clamped to the upstream
// maximum of 50
func (c *Client) FetchPage(ctx context.Context, country string, page, limit int) (Page, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page < 1 {
		page = 1
	}
	key := pageKey{country: country, page: page, limit: limit}
	if p, ok := c.pages.Get(key); ok {
		c.log.Debug().Str("country", country).Int("page", page).Msg("pollution page cache hit")
		return p, nil
	}

	path := fmt.Sprintf("/pollution?country=%s&page=%d&limit=%d", country, page, limit)
	body, err := c.call(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		// a failed upstream session is our problem, not the caller's:
		// callers must never see a credential error for it
		if perr.IsCode(err, perr.ErrorCodeUnauthorized) {
			return Page{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "pollution upstream unavailable")
		}
		return Page{}, err
	}
	p, err := parsePage(body)
	if err != nil {
		return Page{}, perr.Wrapf(err, perr.ErrorCodeUpstream, "pollution page decode failed")
	}
	if p.Dropped > 0 {
		c.log.Warn().Str("country", country).Int("page", page).Int("dropped", p.Dropped).
			Msg("pollution rows dropped by tolerant parse")
	}
	c.pages.Set(key, p, c.opts.PageTTL)
	return p, nil
}

// token returns a live bearer token, logging in or refreshing as needed.
// Holds the session lock so concurrent callers do not double-login
func (c *Client) token(ctx context.Context) (string, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if c.sess.token != "" && c.now().Add(expiryMargin).Before(c.sess.expiresAt) {
		return c.sess.token, nil
	}

	if c.sess.refreshToken != "" {
		if err := c.refreshLocked(ctx); err == nil {
			return c.sess.token, nil
		}
		c.log.Warn().Msg("pollution token refresh failed, falling back to login")
		c.sess = session{}
	}

	if err := c.loginLocked(ctx); err != nil {
		return "", err
	}
	return c.sess.token, nil
}

func (c *Client) loginLocked(ctx context.Context) error {
	body, err := c.authCall(ctx, "/auth/login", loginRequest{
		Username: c.opts.Username,
		Password: c.opts.Password,
	})
	if err != nil {
		return err
	}
	return c.adoptAuth(body)
}

func (c *Client) refreshLocked(ctx context.Context) error {
	body, err := c.authCall(ctx, "/auth/refresh", refreshRequest{RefreshToken: c.sess.refreshToken})
	if err != nil {
		return err
	}
	return c.adoptAuth(body)
}

func (c *Client) authCall(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "pollution auth encode failed")
	}
	body, err := c.call(ctx, http.MethodPost, path, buf, false)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeUpstream) || perr.IsCode(err, perr.ErrorCodeUnauthorized) {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnauthorized, "pollution auth rejected")
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) adoptAuth(body []byte) error {
	var ar authResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnauthorized, "pollution auth decode failed")
	}
	if ar.Token == "" || ar.ExpiresIn <= 0 {
		return perr.Unauthorizedf("pollution auth response missing token")
	}
	c.sess = session{
		token:        ar.Token,
		expiresAt:    c.now().Add(time.Duration(ar.ExpiresIn) * time.Second),
		refreshToken: ar.RefreshToken,
	}
	return nil
}

// gate suspends until the sliding window has a free slot, then records
// the call timestamp
func (c *Client) gate(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.rateMu.Lock()
		now := c.now()
		cutoff := now.Add(-c.opts.RateWindow)
		kept := c.calls[:0]
		for _, t := range c.calls {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		c.calls = kept
		if len(c.calls) < c.opts.RateLimit {
			c.calls = append(c.calls, now)
			c.rateMu.Unlock()
			return nil
		}
		wait := c.calls[0].Add(c.opts.RateWindow).Sub(now) + c.opts.RateMargin
		c.rateMu.Unlock()
		c.log.Debug().Dur("wait", wait).Msg("pollution rate gate waiting")
		c.sleep(wait)
	}
}

// call issues one gated request. Throttled responses retry with backoff
// honoring Retry-After; every other failure propagates immediately
func (c *Client) call(ctx context.Context, method, path string, payload []byte, authed bool) ([]byte, error) {
	url := c.opts.BaseURL + path
	attempts := 0
	for {
		if err := c.gate(ctx); err != nil {
			return nil, err
		}

		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "pollution new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if authed {
			tok, err := c.token(ctx)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+tok)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "pollution transport failed")
		}

		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("pollution http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "pollution body read failed")
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := c.retryAfter(resp.Header)
			_ = drainAndClose(resp.Body)
			if attempts >= c.opts.MaxRetries {
				return nil, perr.Newf(perr.ErrorCodeTooManyRequests,
					"pollution rate limit exhausted after %d retries (%d per %s)",
					c.opts.MaxRetries, c.opts.RateLimit, c.opts.RateWindow)
			}
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			c.log.Warn().Dur("sleep", wait).Int("attempt", attempts).Msg("pollution throttled, backing off")
			c.sleep(wait)
			attempts++
			continue

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, perr.Unauthorizedf("pollution auth failure status %d body %s", resp.StatusCode, string(body))

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, perr.Upstreamf("pollution unexpected status %d body %s", resp.StatusCode, string(body))
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt)
	max := int64(30 * time.Second / time.Millisecond)
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}

// retryAfter handles both Retry-After forms, delta seconds and HTTP date
func (c *Client) retryAfter(h http.Header) time.Duration {
	s := h.Get("Retry-After")
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil {
		if sec <= 0 {
			return 0
		}
		return time.Duration(sec) * time.Second
	}
	if t, err := http.ParseTime(s); err == nil {
		if d := t.Sub(c.now()); d > 0 {
			return d
		}
	}
	return 0
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
