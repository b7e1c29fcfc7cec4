package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"availgrid/internal/atomicfile"
	appLog "availgrid/internal/log"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultParallelism  = 4
	maxRetries          = 3
	userAgent           = "availgrid/1.0 (+ics availability compiler)"
)

// Source represents a single ICS subscription source.
type Source struct {
	// ID is a non-secret label used in logs and errors (e.g. "feed-2").
	ID string
	// URL is the ICS endpoint. Treated as a secret; only logged redacted.
	URL string
}

// SourcesFromURLs assigns positional IDs to a list of feed URLs.
func SourcesFromURLs(urls []string) []Source {
	out := make([]Source, 0, len(urls))
	for i, u := range urls {
		out = append(out, Source{ID: fmt.Sprintf("feed-%d", i+1), URL: u})
	}
	return out
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if the server answered 304 and the cached body was reused
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FetcherOptions configures a Fetcher. Zero values pick defaults.
type FetcherOptions struct {
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts on transport errors and 5xx.
	// Capped at 3 so a daily run stays predictable.
	Retries int
	// CacheDir enables ETag / Last-Modified revalidation when non-empty.
	CacheDir string
	// Parallelism bounds concurrent requests.
	Parallelism int
}

// Fetcher retrieves ICS feeds. Every source is independent: one failing
// feed never affects the others.
type Fetcher struct {
	client      *resty.Client
	cacheDir    string
	parallelism int
}

// NewFetcher creates a new ICS Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Retries > maxRetries {
		opts.Retries = maxRetries
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/calendar, */*;q=0.5").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r != nil && r.StatusCode() >= http.StatusInternalServerError
		})
	client.SetLogger(restyLogger{})

	return &Fetcher{
		client:      client,
		cacheDir:    opts.CacheDir,
		parallelism: opts.Parallelism,
	}
}

// FetchAll fetches all given sources concurrently and returns the
// successful results plus one error per failed source.
//
// Results are pooled before returning; callers must not rely on their
// order matching completion order.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	slots := make([]*FetchResult, len(sources))
	slotErrs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(f.parallelism)
	for i, src := range sources {
		g.Go(func() error {
			res, err := f.FetchOne(ctx, src)
			if err != nil {
				slotErrs[i] = err
				appLog.Warn("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
				return nil
			}
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]FetchResult, 0, len(sources))
	errs := make([]error, 0)
	for i := range sources {
		if slots[i] != nil {
			results = append(results, *slots[i])
		}
		if slotErrs[i] != nil {
			errs = append(errs, slotErrs[i])
		}
	}
	return results, errs
}

// FetchOne fetches a single ICS source. Any failure is returned wrapped in
// ErrFeedUnavailable; the error text never contains the feed URL.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	target, err := normalizeFeedURL(src.URL)
	if err != nil {
		return FetchResult{}, unavailable(src, err)
	}

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(target)
		meta, _ = f.loadCacheMeta(cachePath)
		cachedBody, _ = f.loadCacheBody(cachePath)
	}

	req := f.client.R().SetContext(ctx)
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.SetHeader("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.SetHeader("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(target))

	resp, err := req.Get(target)
	if err != nil {
		return FetchResult{}, unavailable(src, scrubURLError(err))
	}

	switch {
	case resp.IsSuccess():
		body := resp.Body()
		if cachePath != "" {
			newMeta := cacheEntry{
				ETag:         resp.Header().Get("ETag"),
				LastModified: resp.Header().Get("Last-Modified"),
			}
			if err := f.saveCache(cachePath, newMeta, body); err != nil {
				// Log but still return the freshly fetched body.
				appLog.Warn("ics cache save failed", err, "id", src.ID)
			}
		}
		appLog.Info("ics fetch success", "id", src.ID, "status", resp.StatusCode(), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case resp.StatusCode() == http.StatusNotModified && len(cachedBody) > 0:
		appLog.Info("ics fetch not modified; using cache", "id", src.ID)
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		return FetchResult{}, unavailable(src, fmt.Errorf("unexpected HTTP status %s", resp.Status()))
	}
}

func unavailable(src Source, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFeedUnavailable, src.ID, err)
}

// normalizeFeedURL accepts http(s) and webcal(s) URLs, mapping the latter
// to https as calendar apps do.
func normalizeFeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("source URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.New("source URL is not parseable")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "webcal", "webcals":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("source URL has no host")
	}
	return u.String(), nil
}

// scrubURLError strips the request URL from transport errors so feed
// tokens never reach logs.
func scrubURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := atomicfile.Write(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.Write(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

// restyLogger routes resty's internal messages (retry notices) through the
// application logger at debug level.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	appLog.Debug("http client: " + redactInline(fmt.Sprintf(format, v...)))
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	appLog.Debug("http client: " + redactInline(fmt.Sprintf(format, v...)))
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	appLog.Debug("http client: " + redactInline(fmt.Sprintf(format, v...)))
}

// redactInline replaces anything that looks like a URL in s.
func redactInline(s string) string {
	fields := strings.Fields(s)
	for i, fld := range fields {
		if strings.Contains(fld, "://") {
			fields[i] = redactURL(strings.Trim(fld, `"'`))
		}
	}
	return strings.Join(fields, " ")
}
