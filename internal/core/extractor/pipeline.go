package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/logx"
)

// CaptureMode controls when the headless browser runs
type CaptureMode string

const (
	// CaptureAlways runs capture on every request and puts its results first
	CaptureAlways CaptureMode = "always"
	// CaptureFallback runs capture only when markup strategies found nothing
	CaptureFallback CaptureMode = "fallback"
	CaptureOff      CaptureMode = "off"
)

// ParseCaptureMode maps a configured value to a mode, defaulting to always
func ParseCaptureMode(s string) CaptureMode {
	switch CaptureMode(s) {
	case CaptureFallback, CaptureOff:
		return CaptureMode(s)
	}
	return CaptureAlways
}

// Pipeline turns share text into a chosen media URL
type Pipeline struct {
	registry    *Registry
	resolver    *Resolver
	capturer    Capturer
	prober      Prober
	captureMode CaptureMode
	strategies  []markupStrategy
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRegistry replaces the default platform registry
func WithRegistry(r *Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithCapturer sets the network-capture extractor; nil disables capture
func WithCapturer(c Capturer) Option {
	return func(p *Pipeline) { p.capturer = c }
}

// WithProber sets the reachability prober
func WithProber(pr Prober) Option {
	return func(p *Pipeline) { p.prober = pr }
}

// WithCaptureMode sets when capture runs
func WithCaptureMode(m CaptureMode) Option {
	return func(p *Pipeline) { p.captureMode = m }
}

// NewPipeline creates a pipeline around a resolver. Without options it uses
// the default registry, an HTTP prober and no capture.
func NewPipeline(resolver *Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:    DefaultRegistry,
		resolver:    resolver,
		captureMode: CaptureAlways,
		strategies:  defaultStrategies,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.prober == nil {
		p.prober = NewHTTPProber(HTTPProberOptions{})
	}
	return p
}

// NewFromConfig wires a pipeline from the loaded configuration
func NewFromConfig(cfg *config.Config) *Pipeline {
	headers := BrowserHeaders{
		UserAgent:      cfg.Resolver.UserAgent,
		AcceptLanguage: cfg.Resolver.AcceptLanguage,
		Referer:        cfg.Resolver.Referer,
	}
	resolver := NewResolver(ResolverOptions{
		Headers:        headers,
		ResolveTimeout: cfg.Resolver.Timeout,
		FetchTimeout:   cfg.Resolver.FetchTimeout,
	})
	prober := NewHTTPProber(HTTPProberOptions{
		Headers:    headers,
		Timeout:    cfg.Probe.Timeout,
		RejectHTML: cfg.Probe.RejectHTML,
	})

	mode := ParseCaptureMode(cfg.Capture.Mode)
	opts := []Option{WithProber(prober), WithCaptureMode(mode)}
	if mode != CaptureOff {
		opts = append(opts, WithCapturer(NewBrowserCapturer(BrowserCapturerOptions{
			BrowserPath: cfg.Capture.BrowserPath,
			UserAgent:   cfg.Resolver.UserAgent,
			Timeout:     cfg.Capture.Timeout,
			Settle:      cfg.Capture.Settle,
		})))
	}
	return NewPipeline(resolver, opts...)
}

// Registry returns the platform registry the pipeline uses
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Resolve runs the whole pipeline: locate the URL in rawText, follow its
// redirects, extract candidates for the landing page's platform and select
// one. credential, when set, is forwarded as the Cookie header.
func (p *Pipeline) Resolve(ctx context.Context, rawText, credential string) (*Outcome, error) {
	start := time.Now()

	shortURL, ok := p.registry.Locate(rawText)
	if !ok {
		return nil, &InputError{Text: rawText}
	}
	ctx = logx.With(ctx, "short_url", shortURL)
	log := logx.FromContext(ctx)

	landing, err := p.resolver.Resolve(ctx, shortURL)
	if err != nil {
		log.Warn().Err(err).Bool("timeout", isTimeout(err)).Msg("redirect resolution failed")
		return nil, err
	}

	link := p.registry.Link(shortURL, landing)
	profile := p.registry.Profile(link.Platform)
	ctx = logx.With(ctx, "platform", string(link.Platform))
	log = logx.FromContext(ctx)

	candidates, err := p.extract(ctx, profile, link, credential)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Info().Str("target_url", landing).Msg("no media candidates")
		return nil, &NoCandidatesError{TargetURL: landing, Platform: link.Platform}
	}

	selection, pool := NewSelector(profile, p.prober).Select(ctx, candidates)
	log.Info().
		Int("candidates", len(candidates)).
		Int("pool", len(pool)).
		Str("chosen", selection.Chosen).
		Dur("elapsed", time.Since(start)).
		Msg("media selected")

	return &Outcome{
		ImageURL:  selection.Chosen,
		AllImages: candidates,
		NoteID:    ExtractID(profile, landing),
		TargetURL: landing,
		Platform:  link.Platform,
		Selection: selection,
	}, nil
}

// extract gathers filtered, de-duplicated candidates from markup and capture.
// A failed markup fetch is fatal only when capture cannot stand in for it.
func (p *Pipeline) extract(ctx context.Context, profile *Profile, link ResolvedLink, credential string) ([]string, error) {
	log := logx.FromContext(ctx)

	var fromMarkup []string
	markup, fetchErr := p.resolver.Fetch(ctx, link.LandingURL, credential)
	if fetchErr != nil {
		log.Warn().Err(fetchErr).Bool("timeout", isTimeout(fetchErr)).Msg("markup fetch failed")
	} else {
		var strategy string
		fromMarkup, strategy = firstNonEmpty(p.strategies, profile, markup)
		log.Debug().Str("strategy", strategy).Int("count", len(fromMarkup)).Msg("markup strategies finished")
	}

	var fromCapture []string
	if p.shouldCapture(len(fromMarkup)) {
		urls, err := p.capturer.Capture(ctx, link.LandingURL, credential, profile.MediaDomains)
		if err != nil {
			log.Warn().Err(err).Msg("network capture failed")
		}
		fromCapture = FilterMedia(profile, urls)
	}

	candidates := dedupe(append(fromCapture, fromMarkup...))
	if len(candidates) == 0 && fetchErr != nil {
		var netErr *NetworkError
		if errors.As(fetchErr, &netErr) {
			return nil, netErr
		}
		return nil, &NetworkError{Op: "fetch", URL: link.LandingURL, Err: fetchErr}
	}
	return candidates, nil
}

func (p *Pipeline) shouldCapture(found int) bool {
	if p.capturer == nil {
		return false
	}
	switch p.captureMode {
	case CaptureAlways:
		return true
	case CaptureFallback:
		return found == 0
	}
	return false
}
