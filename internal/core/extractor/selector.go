package extractor

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/guiyumin/unmark/internal/core/logx"
	"golang.org/x/sync/errgroup"
)

const defaultProbeTimeout = 12 * time.Second

var extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)

// Prober checks that a media URL is actually retrievable
type Prober interface {
	Probe(ctx context.Context, mediaURL string) error
}

// HTTPProber issues a byte-range GET for the first KiB of a URL
type HTTPProber struct {
	client     *http.Client
	timeout    time.Duration
	rejectHTML bool
}

// HTTPProberOptions configures an HTTPProber. Zero values pick the defaults.
type HTTPProberOptions struct {
	Headers BrowserHeaders
	Timeout time.Duration
	// RejectHTML treats a text/html answer as unreachable; CDNs serve error
	// pages with status 200
	RejectHTML bool
}

// NewHTTPProber creates a prober with its own browser-like client
func NewHTTPProber(opts HTTPProberOptions) *HTTPProber {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProbeTimeout
	}
	return &HTTPProber{
		client:     NewHTTPClient(0, opts.Headers),
		timeout:    opts.Timeout,
		rejectHTML: opts.RejectHTML,
	}
}

// Probe returns nil when the URL answers 200 or 206
func (p *HTTPProber) Probe(ctx context.Context, mediaURL string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return &ProbeError{URL: mediaURL, Err: err}
	}
	req.Header.Set("Range", "bytes=0-1023")

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProbeError{URL: mediaURL, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &ProbeError{URL: mediaURL, Status: resp.StatusCode}
	}
	if p.rejectHTML {
		if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "text/html" {
			return &ProbeError{URL: mediaURL, Status: resp.StatusCode, Err: errHTMLBody}
		}
	}
	return nil
}

// Selector ranks candidates by watermark status and reachability
type Selector struct {
	prober     Prober
	markers    []string
	delimiters []string
}

// NewSelector creates a selector using the platform's watermark vocabulary.
// A nil prober treats every URL as unreachable.
func NewSelector(p *Profile, prober Prober) *Selector {
	markers := make([]string, len(p.WatermarkMarkers))
	for i, m := range p.WatermarkMarkers {
		markers[i] = strings.ToLower(m)
	}
	return &Selector{
		prober:     prober,
		markers:    markers,
		delimiters: p.SuffixDelimiters,
	}
}

// Classify inspects a single URL
func (s *Selector) Classify(rawURL string) MediaCandidate {
	return MediaCandidate{
		URL:         rawURL,
		Watermarked: s.watermarked(rawURL),
		Variant:     s.derive(rawURL),
	}
}

// watermarked looks for a marker in the URL without its query string
func (s *Selector) watermarked(rawURL string) bool {
	base, _, _ := strings.Cut(rawURL, "?")
	base, _, _ = strings.Cut(base, "#")
	base = strings.ToLower(base)
	for _, m := range s.markers {
		if m != "" && strings.Contains(base, m) {
			return true
		}
	}
	return false
}

// derive strips the processing suffix from the URL path, keeping the file
// extension and the original query string. It returns "" when the path has
// no suffix delimiter.
func (s *Selector) derive(rawURL string) string {
	rest, fragment, hasFragment := strings.Cut(rawURL, "#")
	rest, query, hasQuery := strings.Cut(rest, "?")

	// only the path may be truncated, never the scheme or host
	pathStart := 0
	if i := strings.Index(rest, "://"); i >= 0 {
		pathStart = i + 3
		if j := strings.Index(rest[pathStart:], "/"); j >= 0 {
			pathStart += j
		} else {
			return ""
		}
	}
	p := rest[pathStart:]

	cut := -1
	var delim string
	for _, d := range s.delimiters {
		if d == "" {
			continue
		}
		if i := strings.Index(p, d); i >= 0 && (cut < 0 || i < cut) {
			cut, delim = i, d
		}
	}
	if cut <= 0 {
		return ""
	}

	suffix := p[cut+len(delim):]
	ext := path.Ext(suffix)
	if !extensionPattern.MatchString(ext) || path.Ext(p[:cut]) != "" {
		ext = ""
	}

	derived := rest[:pathStart] + p[:cut] + ext
	if hasQuery {
		derived += "?" + query
	}
	if hasFragment {
		derived += "#" + fragment
	}
	return derived
}

// Pool expands candidates with their de-watermarked variants, each variant
// placed before its source, de-duplicated in first-seen order
func (s *Selector) Pool(candidates []string) []string {
	pool := make([]string, 0, len(candidates)*2)
	for _, c := range candidates {
		if v := s.derive(c); v != "" {
			pool = append(pool, v)
		}
		pool = append(pool, c)
	}
	return dedupe(pool)
}

// Select picks the best URL. Preference: reachable unwatermarked, reachable
// watermarked, unwatermarked, watermarked, then the first raw candidate.
// Both finalists are probed concurrently.
func (s *Selector) Select(ctx context.Context, candidates []string) (SelectionResult, []string) {
	pool := s.Pool(candidates)
	var res SelectionResult
	for _, u := range pool {
		if s.watermarked(u) {
			if res.Watermarked == "" {
				res.Watermarked = u
			}
		} else if res.Unwatermarked == "" {
			res.Unwatermarked = u
		}
	}

	var okClean, okMarked bool
	g, gctx := errgroup.WithContext(ctx)
	if res.Unwatermarked != "" {
		g.Go(func() error {
			okClean = s.reachable(gctx, res.Unwatermarked)
			return nil
		})
	}
	if res.Watermarked != "" {
		g.Go(func() error {
			okMarked = s.reachable(gctx, res.Watermarked)
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case okClean:
		res.Chosen = res.Unwatermarked
	case okMarked:
		res.Chosen = res.Watermarked
	case res.Unwatermarked != "":
		res.Chosen = res.Unwatermarked
	case res.Watermarked != "":
		res.Chosen = res.Watermarked
	case len(candidates) > 0:
		res.Chosen = candidates[0]
	}
	return res, pool
}

func (s *Selector) reachable(ctx context.Context, u string) bool {
	if s.prober == nil {
		return false
	}
	if err := s.prober.Probe(ctx, u); err != nil {
		logx.FromContext(ctx).Debug().Err(err).Str("url", u).Msg("probe failed")
		return false
	}
	return true
}
