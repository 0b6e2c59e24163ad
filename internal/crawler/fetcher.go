package crawler

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"linkharvest/internal/model"
)

// Fetcher retrieves single pages with a bounded timeout, a retry policy for
// transient failures, and content-type gating. Every component that performs
// network I/O (spider, paginator, gateway resolver) goes through the same
// Fetcher so the retry policy is applied uniformly.
//
// Design decision: We require an external *http.Client because it lets tests
// point the fetcher at an httptest.Server transport and keeps connection
// pooling shared across components.
type Fetcher struct {
	// client is the HTTP client; redirects are followed by default.
	client *http.Client

	// timeout bounds one attempt, including the body read.
	timeout time.Duration

	// retryCount is the number of retries after a retryable failure.
	retryCount int

	// backoff is the base delay between retries. The actual delay is
	// backoff × attempt plus jitter of up to one quarter of the base.
	backoff time.Duration

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize limits how much of a response body is read.
	maxBodySize int64

	// cookie and headers are site credentials from the profile.
	cookie  string
	headers map[string]string

	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRetries sets the retry count and base backoff delay.
func WithRetries(count int, backoff time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.retryCount = count
		f.backoff = backoff
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithCookie sets a cookie sent with every request.
func WithCookie(cookie string) FetcherOption {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher with the given HTTP client.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		timeout:     15 * time.Second,
		retryCount:  2,
		backoff:     500 * time.Millisecond,
		userAgent:   "linkharvest/1.0 (link resolution crawler)",
		maxBodySize: model.MaxPageSize,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Fetch retrieves the page at rawURL via GET.
// On transient failure it retries up to the configured count with increasing
// backoff before surfacing a *FetchError. HTTP 4xx other than 429 fails
// immediately without retry.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil)
}

// PostForm retrieves the page at rawURL via a form-encoded POST. Used by the
// pagination sequencer; the same retry policy applies.
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values) (*model.Page, error) {
	return f.do(ctx, http.MethodPost, rawURL, form)
}

// do runs the attempt loop around attempt.
func (f *Fetcher) do(ctx context.Context, method, rawURL string, form url.Values) (*model.Page, error) {
	var lastErr *FetchError

	for attempt := 0; attempt <= f.retryCount; attempt++ {
		if attempt > 0 {
			if err := f.sleep(ctx, f.retryDelay(attempt)); err != nil {
				return nil, lastErr
			}
			f.logger.Debug("retrying fetch",
				"url", rawURL,
				"attempt", attempt,
				"kind", lastErr.Kind,
			)
		}

		page, err := f.attempt(ctx, method, rawURL, form)
		if err == nil {
			return page, nil
		}

		lastErr = err
		if !err.Retryable() {
			return nil, err
		}

		// Cancellation is not a transient server condition; stop here.
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// attempt performs a single request.
func (f *Fetcher) attempt(ctx context.Context, method, rawURL string, form url.Values) (*model.Page, *FetchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: FailureClient, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	if ferr := classifyStatus(rawURL, resp.StatusCode); ferr != nil {
		return nil, ferr
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	if !textual(mediaType) {
		return nil, &FetchError{URL: rawURL, Kind: FailureContentType, StatusCode: resp.StatusCode}
	}

	// Decode to UTF-8. charset.NewReader sniffs <meta charset> declarations
	// in addition to the Content-Type header, which matters for the older
	// PHP directory sites this tool crawls.
	decoded, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBodySize), contentType)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: FailureNetwork, Err: err}
	}

	raw, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: FailureNetwork, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page := &model.Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: mediaType,
		Body:        string(raw),
	}
	page.ComputeHash()

	return page, nil
}

// classifyStatus maps an HTTP status code onto the failure taxonomy.
// nil means the response is usable.
func classifyStatus(rawURL string, status int) *FetchError {
	switch {
	case status == http.StatusTooManyRequests:
		return &FetchError{URL: rawURL, Kind: FailureRateLimit, StatusCode: status}
	case status >= 500:
		return &FetchError{URL: rawURL, Kind: FailureServer, StatusCode: status}
	case status >= 400:
		return &FetchError{URL: rawURL, Kind: FailureClient, StatusCode: status}
	}
	return nil
}

// textual reports whether the media type is worth parsing for links.
// An empty media type is accepted; pagination endpoints frequently return
// bare HTML fragments without a Content-Type header.
func textual(mediaType string) bool {
	if mediaType == "" {
		return true
	}
	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == "application/xhtml+xml" ||
		mediaType == "application/xml"
}

// retryDelay computes the backoff before the given attempt: base × attempt
// plus jitter of up to a quarter of the base, so concurrent retries against
// one host don't align.
func (f *Fetcher) retryDelay(attempt int) time.Duration {
	delay := f.backoff * time.Duration(attempt)
	if f.backoff > 0 {
		delay += time.Duration(rand.Int63n(int64(f.backoff)/4 + 1))
	}
	return delay
}

// sleep waits for d or until ctx is cancelled.
func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
