package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/guiyumin/unmark/internal/core/logx"
)

const (
	defaultCaptureTimeout = 30 * time.Second
	defaultCaptureSettle  = 2 * time.Second
	requestIdleWindow     = 500 * time.Millisecond
)

// Capturer records media requests a rendered page makes
type Capturer interface {
	Capture(ctx context.Context, pageURL, credential string, mediaDomains []string) ([]string, error)
}

// BrowserCapturer renders pages in a headless Chromium through rod
type BrowserCapturer struct {
	browserPath string
	userAgent   string
	timeout     time.Duration
	settle      time.Duration
}

// BrowserCapturerOptions configures a BrowserCapturer. Zero values pick the defaults.
type BrowserCapturerOptions struct {
	// BrowserPath overrides ROD_BROWSER and the system lookup
	BrowserPath string
	UserAgent   string
	Timeout     time.Duration
	Settle      time.Duration
}

// NewBrowserCapturer creates a capturer. No browser is started until Capture.
func NewBrowserCapturer(opts BrowserCapturerOptions) *BrowserCapturer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCaptureTimeout
	}
	if opts.Settle <= 0 {
		opts.Settle = defaultCaptureSettle
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &BrowserCapturer{
		browserPath: opts.BrowserPath,
		userAgent:   opts.UserAgent,
		timeout:     opts.Timeout,
		settle:      opts.Settle,
	}
}

// findBrowser returns a browser binary: configured path, then ROD_BROWSER
// (set in Docker), then whatever rod finds on the system
func (c *BrowserCapturer) findBrowser() (string, bool) {
	for _, p := range []string{c.browserPath, os.Getenv("ROD_BROWSER")} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return launcher.LookPath()
}

// Capture loads pageURL and returns media URLs requested while it renders.
// Without an installed browser it returns nothing and no error.
func (c *BrowserCapturer) Capture(ctx context.Context, pageURL, credential string, mediaDomains []string) ([]string, error) {
	log := logx.FromContext(ctx)

	bin, ok := c.findBrowser()
	if !ok {
		log.Debug().Msg("no browser installed, skipping network capture")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout+c.settle)
	defer cancel()

	l := c.newLauncher(bin).Context(ctx)
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if credential != "" {
		restore, err := page.SetExtraHeaders([]string{"Cookie", credential})
		if err != nil {
			return nil, fmt.Errorf("failed to set cookie header: %w", err)
		}
		defer restore()
	}

	_ = proto.NetworkEnable{}.Call(page)

	rec := newRequestRecorder(mediaDomains)
	listenerCtx, stopListener := context.WithCancel(ctx)
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		page.Context(listenerCtx).EachEvent(func(ev *proto.NetworkRequestWillBeSent) {
			rec.observe(ev.Request.URL)
		})()
	}()

	navCtx, navCancel := context.WithTimeout(ctx, c.timeout)
	navPage := page.Context(navCtx)
	if err := navPage.Navigate(pageURL); err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("capture navigation failed")
	} else {
		_ = navPage.WaitLoad()
		navPage.WaitRequestIdle(requestIdleWindow, nil, nil, nil)()
	}
	navCancel()

	// lazy-loaded images often start after the network goes idle
	select {
	case <-time.After(c.settle):
	case <-ctx.Done():
	}

	stopListener()
	<-listenerDone

	urls := rec.urls()
	log.Debug().Int("count", len(urls)).Str("url", pageURL).Msg("network capture finished")
	return urls, nil
}

func (c *BrowserCapturer) newLauncher(bin string) *launcher.Launcher {
	return launcher.New().
		Bin(bin).
		Headless(true).
		Leakless(false).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("no-first-run").
		Set("window-size", "1280,900").
		Set("user-agent", c.userAgent)
}

// requestRecorder collects request URLs that hit one of the media domains,
// in first-seen order
type requestRecorder struct {
	mu      sync.Mutex
	domains []string
	seen    map[string]bool
	order   []string
}

func newRequestRecorder(domains []string) *requestRecorder {
	lower := make([]string, 0, len(domains))
	for _, d := range domains {
		if d != "" {
			lower = append(lower, strings.ToLower(d))
		}
	}
	return &requestRecorder{domains: lower, seen: map[string]bool{}}
}

func (r *requestRecorder) observe(rawURL string) {
	lowerURL := strings.ToLower(rawURL)
	if !strings.HasPrefix(lowerURL, "http://") && !strings.HasPrefix(lowerURL, "https://") {
		return
	}
	matched := false
	for _, d := range r.domains {
		if strings.Contains(lowerURL, d) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[rawURL] {
		return
	}
	r.seen[rawURL] = true
	r.order = append(r.order, rawURL)
}

func (r *requestRecorder) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
