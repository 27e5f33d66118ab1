// Package wiki provides the batched validation client against the
// knowledge source. Candidate place names go in, descriptions (or the
// empty string for rejected names) come out, with at most two upstream
// round trips per name
package wiki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"smogwatch/internal/core/normalize"
	"smogwatch/internal/platform/cache"
	perr "smogwatch/internal/platform/errors"
	"smogwatch/internal/platform/logger"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultUA          = "smogwatch-aggregator"
	defaultBatchSize   = 20
	defaultConcurrency = 3
	defaultPacing      = 250 * time.Millisecond
	defaultMaxRetry    = 3
	defaultRetryBase   = 500 * time.Millisecond
	defaultDescTTL     = 24 * time.Hour
	defaultNegTTL      = 5 * time.Minute
	defaultDescCap     = 4096

	maxRedirectHops = 5
	maxContinues    = 3
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Chunking and concurrency for one batched validation call
	BatchSize   int
	Concurrency int
	Pacing      time.Duration

	// Per chunk retry policy for transient failures
	MaxRetries int
	RetryBase  time.Duration

	// Description cache: DescTTL for real outcomes including null,
	// NegTTL for nulls caused by a wholly unreachable upstream
	DescTTL time.Duration
	NegTTL  time.Duration
	DescCap int
}

type descKey struct {
	country string
	name    string
}

// Client is the batched validation client. Safe for concurrent use
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)

	descs *cache.Cache[descKey, string]
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.Pacing <= 0 {
		o.Pacing = defaultPacing
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.DescTTL <= 0 {
		o.DescTTL = defaultDescTTL
	}
	if o.NegTTL <= 0 {
		o.NegTTL = defaultNegTTL
	}
	if o.DescCap <= 0 {
		o.DescCap = defaultDescCap
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("wiki"),
		now:   time.Now,
		sleep: time.Sleep,
		descs: cache.New[descKey, string](o.DescCap),
	}
}

// CachedDescriptions reports the number of live description cache entries
func (c *Client) CachedDescriptions() int { return c.descs.Len() }

// Describe resolves every requested name to a description or the empty
// string, serving cached outcomes first and querying the knowledge
// source in at most two passes for the rest. The returned map always
// holds exactly one entry per distinct requested name. A wholly
// unreachable upstream degrades to empty descriptions, it is not fatal
func (c *Client) Describe(ctx context.Context, country string, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	var uncached []string
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if d, ok := c.descs.Get(descKey{country: country, name: n}); ok {
			out[n] = d
			continue
		}
		uncached = append(uncached, n)
	}
	if len(uncached) == 0 {
		return out, nil
	}

	label := normalize.Label(country)
	res := make(map[string]*resolution, len(uncached))

	// pass 1: names as requested
	batch := c.fetchBatch(ctx, uncached)
	for _, n := range uncached {
		res[n] = c.evaluate(batch, n, n, label)
	}

	// pass 2: pending names once more, ASCII folded, never recursing
	var retryNames, retryQueries []string
	for _, n := range uncached {
		r := res[n]
		if r.state != statePending || r.chunkFailed {
			continue
		}
		q := r.revised
		if q == "" {
			q = n
		}
		q = normalize.Fold(q)
		if q == "" {
			r.state = stateFailed
			continue
		}
		retryNames = append(retryNames, n)
		retryQueries = append(retryQueries, q)
	}
	if len(retryQueries) > 0 {
		batch2 := c.fetchBatch(ctx, retryQueries)
		for i, n := range retryNames {
			r2 := c.evaluate(batch2, n, retryQueries[i], "")
			if r2.state == stateResolved {
				res[n] = r2
				continue
			}
			res[n].state = stateFailed
			res[n].chunkFailed = res[n].chunkFailed || r2.chunkFailed
		}
	}

	// cache every outcome under the original requested name
	for _, n := range uncached {
		r := res[n]
		desc := ""
		if r.state == stateResolved {
			desc = r.description
		}
		ttl := c.opts.DescTTL
		if desc == "" && r.chunkFailed {
			ttl = c.opts.NegTTL
		}
		c.descs.Set(descKey{country: country, name: n}, desc, ttl)
		out[n] = desc
	}
	return out, ctx.Err()
}

// evaluate resolves one query against a fetched batch and classifies
// its page. label is non-empty only on the first pass: a disambiguation
// hit queues a revised "<name>, <label>" query; on the second pass it
// simply stays pending
func (c *Client) evaluate(b map[string]*chunkResult, name, query, label string) *resolution {
	cr := b[query]
	if cr == nil || cr.err != nil {
		return &resolution{state: statePending, chunkFailed: true}
	}
	title := resolveTitle(cr, query)
	p, ok := cr.pages[title]
	if !ok {
		return &resolution{state: statePending}
	}
	r := classifyPage(p)
	if r.state == statePending && p.disambiguation() && label != "" {
		r.revised = name + ", " + label
	}
	return &r
}

// resolveTitle follows the normalized then redirect chains to the title
// the page record is keyed under
func resolveTitle(cr *chunkResult, query string) string {
	t := query
	if to, ok := cr.normalized[t]; ok {
		t = to
	}
	for hop := 0; hop < maxRedirectHops; hop++ {
		to, ok := cr.redirects[t]
		if !ok || to == t {
			break
		}
		t = to
	}
	return t
}

// fetchBatch runs chunked queries with a bounded worker pool, pacing
// submissions. A failing chunk never cancels its siblings, its queries
// map to a failed chunkResult
func (c *Client) fetchBatch(ctx context.Context, queries []string) map[string]*chunkResult {
	byQuery := make(map[string]*chunkResult, len(queries))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for i := 0; i < len(queries); i += c.opts.BatchSize {
		chunk := queries[i:min(i+c.opts.BatchSize, len(queries))]
		if i > 0 {
			c.sleep(c.opts.Pacing)
		}
		g.Go(func() error {
			cr := c.queryTitles(ctx, chunk)
			mu.Lock()
			for _, q := range chunk {
				byQuery[q] = cr
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return byQuery
}

// queryTitles issues one chunk query, retrying transient failures, and
// follows category continuation tokens to merge full category lists
func (c *Client) queryTitles(ctx context.Context, titles []string) *chunkResult {
	cr := &chunkResult{
		normalized: map[string]string{},
		redirects:  map[string]string{},
		pages:      map[string]wikiPage{},
	}

	clcontinue, cont := "", ""
	for follow := 0; follow <= maxContinues; follow++ {
		qr, err := c.queryOnce(ctx, titles, clcontinue, cont)
		if err != nil {
			if follow == 0 {
				cr.err = err
				return cr
			}
			// partial category lists are acceptable mid-continuation
			c.log.Warn().Err(err).Msg("wiki continuation failed, keeping partial categories")
			break
		}
		for _, nm := range qr.Query.Normalized {
			cr.normalized[nm.From] = nm.To
		}
		for _, rd := range qr.Query.Redirects {
			cr.redirects[rd.From] = rd.To
		}
		for _, p := range qr.Query.Pages {
			if prev, ok := cr.pages[p.Title]; ok {
				prev.Categories = append(prev.Categories, p.Categories...)
				if prev.Extract == "" {
					prev.Extract = p.Extract
				}
				cr.pages[p.Title] = prev
				continue
			}
			cr.pages[p.Title] = p
		}
		if qr.Continue.Clcontinue == "" {
			break
		}
		clcontinue, cont = qr.Continue.Clcontinue, qr.Continue.Continue
	}
	return cr
}

// queryOnce performs a single HTTP call with the chunk retry policy
func (c *Client) queryOnce(ctx context.Context, titles []string, clcontinue, cont string) (*queryResponse, error) {
	v := url.Values{}
	v.Set("action", "query")
	v.Set("format", "json")
	v.Set("redirects", "1")
	v.Set("prop", "pageprops|categories|extracts")
	v.Set("ppprop", "disambiguation")
	v.Set("cllimit", "500")
	v.Set("explaintext", "1")
	v.Set("exintro", "1")
	v.Set("titles", strings.Join(titles, "|"))
	if clcontinue != "" {
		v.Set("clcontinue", clcontinue)
		v.Set("continue", cont)
	}
	u := c.opts.BaseURL + "?" + v.Encode()

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "wiki new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if !perr.Retryable(err) || attempts >= c.opts.MaxRetries {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "wiki transport failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("wiki transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var qr queryResponse
			err := json.NewDecoder(resp.Body).Decode(&qr)
			_ = resp.Body.Close()
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "wiki response decode failed")
			}
			return &qr, nil

		case perr.RetryableStatus(resp.StatusCode):
			wait := c.retryAfter(resp.Header)
			_ = drainAndClose(resp.Body)
			if attempts >= c.opts.MaxRetries {
				return nil, perr.Unavailablef("wiki unavailable after %d retries, last status %d",
					c.opts.MaxRetries, resp.StatusCode)
			}
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			c.log.Warn().Dur("sleep", wait).Int("status", resp.StatusCode).Msg("wiki transient status retrying")
			c.sleep(wait)
			attempts++
			continue

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, perr.Upstreamf("wiki unexpected status %d body %s", resp.StatusCode, string(body))
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
