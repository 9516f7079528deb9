package extractor

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/guiyumin/unmark/internal/core/logx"
)

const (
	defaultResolveTimeout = 5 * time.Second
	defaultFetchTimeout   = 8 * time.Second

	// maxMarkupBytes bounds how much of a landing page is read
	maxMarkupBytes = 10 << 20
)

// ResolverOptions configures a Resolver. Zero values pick the defaults.
type ResolverOptions struct {
	Headers        BrowserHeaders
	ResolveTimeout time.Duration
	FetchTimeout   time.Duration
}

// Resolver follows share-link redirects and fetches landing-page markup
type Resolver struct {
	client         *http.Client
	resolveTimeout time.Duration
	fetchTimeout   time.Duration
}

// NewResolver creates a Resolver with its own browser-like client
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	return &Resolver{
		client:         NewHTTPClient(0, opts.Headers),
		resolveTimeout: opts.ResolveTimeout,
		fetchTimeout:   opts.FetchTimeout,
	}
}

// Resolve follows redirects from rawURL and returns the final URL. Any HTTP
// status counts as resolved; only transport failures are errors.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.resolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &NetworkError{Op: "resolve", URL: rawURL, Err: err}
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "resolve", URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	landing := resp.Request.URL.String()
	logx.FromContext(ctx).Debug().
		Str("short_url", rawURL).
		Str("landing_url", landing).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("redirect resolved")
	return landing, nil
}

// Fetch downloads the markup of pageURL. A non-empty credential is sent
// verbatim as the Cookie header.
func (r *Resolver) Fetch(ctx context.Context, pageURL, credential string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &NetworkError{Op: "fetch", URL: pageURL, Err: err}
	}
	if credential != "" {
		req.Header.Set("Cookie", credential)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "fetch", URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &NetworkError{Op: "fetch", URL: pageURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMarkupBytes))
	if err != nil {
		return "", &NetworkError{Op: "fetch", URL: pageURL, Err: err}
	}
	return string(body), nil
}
