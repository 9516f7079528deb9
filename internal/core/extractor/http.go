package extractor

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	defaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
	defaultReferer        = "https://www.xiaohongshu.com/"

	maxRedirects = 10
)

// BrowserHeaders is the header set sent with every outbound request.
// Accept-Encoding is left to the transport so bodies are decompressed.
type BrowserHeaders struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	Referer        string
}

// DefaultBrowserHeaders returns the headers of a desktop Chrome
func DefaultBrowserHeaders() BrowserHeaders {
	return BrowserHeaders{
		UserAgent:      defaultUserAgent,
		Accept:         defaultAccept,
		AcceptLanguage: defaultAcceptLanguage,
		Referer:        defaultReferer,
	}
}

func (h BrowserHeaders) withDefaults() BrowserHeaders {
	d := DefaultBrowserHeaders()
	if h.UserAgent == "" {
		h.UserAgent = d.UserAgent
	}
	if h.Accept == "" {
		h.Accept = d.Accept
	}
	if h.AcceptLanguage == "" {
		h.AcceptLanguage = d.AcceptLanguage
	}
	if h.Referer == "" {
		h.Referer = d.Referer
	}
	return h
}

var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 15 * time.Second,
	IdleConnTimeout:       90 * time.Second,
}

// browserTransport fills in browser headers the request does not set itself.
// The caller's request is never modified.
type browserTransport struct {
	base    http.RoundTripper
	headers BrowserHeaders
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	setIfEmpty(req.Header, "User-Agent", t.headers.UserAgent)
	setIfEmpty(req.Header, "Accept", t.headers.Accept)
	setIfEmpty(req.Header, "Accept-Language", t.headers.AcceptLanguage)
	setIfEmpty(req.Header, "Referer", t.headers.Referer)
	return t.base.RoundTrip(req)
}

func setIfEmpty(h http.Header, key, value string) {
	if value != "" && h.Get(key) == "" {
		h.Set(key, value)
	}
}

// NewHTTPClient returns a client that looks like a browser and follows at
// most 10 redirects. A zero timeout leaves bounding to the request context.
func NewHTTPClient(timeout time.Duration, headers BrowserHeaders) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &browserTransport{
			base:    sharedTransport,
			headers: headers.withDefaults(),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// CloseIdleConnections drops pooled connections, used on shutdown
func CloseIdleConnections() {
	sharedTransport.CloseIdleConnections()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
