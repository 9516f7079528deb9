package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/guiyumin/unmark/internal/core/i18n"
	"github.com/guiyumin/unmark/internal/core/logx"
)

// imageExts maps common image content types to a file extension
var imageExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
	"image/avif": ".avif",
}

const maxProxyRedirects = 5

// errRedirectForbidden is returned when an upstream redirect leaves the
// media allow-list
var errRedirectForbidden = errors.New("redirect target is not an allowed media URL")

// checkProxyRedirect re-applies the media policy to every redirect hop
func (s *Server) checkProxyRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxProxyRedirects {
		return fmt.Errorf("stopped after %d redirects", maxProxyRedirects)
	}
	if s.media == nil || !s.media.AllowsMedia(req.URL.String()) {
		return errRedirectForbidden
	}
	return nil
}

// handleProxy streams a platform media file for clients that may only talk
// to this host. Only URLs on a registered media domain are fetched.
func (s *Server) handleProxy(c *gin.Context) {
	t := i18n.GetTranslations(s.lang(c))
	log := logx.FromContext(c.Request.Context())

	target := c.Query("url")
	if target == "" {
		s.fail(c, http.StatusBadRequest, t.Errors.ProxyMissingURL)
		return
	}
	if s.media == nil || !s.media.AllowsMedia(target) {
		s.fail(c, http.StatusForbidden, t.Errors.ProxyForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Proxy.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		s.fail(c, http.StatusBadRequest, t.Errors.ProxyForbidden)
		return
	}
	resp, err := s.upstream.Do(req)
	if errors.Is(err, errRedirectForbidden) {
		log.Warn().Str("url", target).Msg("proxy redirect left the media allow-list")
		s.fail(c, http.StatusForbidden, t.Errors.ProxyForbidden)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("url", target).Msg("proxy request failed")
		s.fail(c, http.StatusBadGateway, t.Errors.ProxyUpstream)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("url", target).Msg("proxy upstream rejected")
		s.fail(c, http.StatusBadGateway, t.Errors.ProxyUpstream)
		return
	}
	maxBytes := s.cfg.Proxy.MaxBytes
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		log.Warn().Int64("size", resp.ContentLength).Str("url", target).Msg("proxy body too large")
		s.fail(c, http.StatusBadGateway, t.Errors.ProxyUpstream)
		return
	}

	body := bufio.NewReaderSize(resp.Body, 512)
	contentType := resp.Header.Get("Content-Type")
	if needsSniff(contentType) {
		head, _ := body.Peek(sniffLen)
		if sniffed := sniffImageType(head); sniffed != "" {
			contentType = sniffed
		}
	}
	filename := proxyFilename(c.Query("filename"), target, contentType)

	if contentType != "" {
		c.Header("Content-Type", contentType)
	}
	if resp.ContentLength > 0 {
		c.Header("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Status(http.StatusOK)

	var src io.Reader = body
	if maxBytes > 0 {
		src = io.LimitReader(body, maxBytes)
	}
	if n, err := io.Copy(c.Writer, src); err != nil {
		log.Warn().Err(err).Int64("written", n).Str("url", target).Msg("proxy stream interrupted")
	}
}

// proxyFilename builds a safe download name from the requested name, falling
// back to the last path segment of the media URL
func proxyFilename(requested, target, contentType string) string {
	name := extractor.SanitizeFilename(requested)
	if name == "" {
		if u, err := url.Parse(target); err == nil {
			if base := path.Base(u.Path); base != "/" && base != "." {
				if i := strings.IndexAny(base, "!~"); i > 0 {
					base = base[:i]
				}
				name = extractor.SanitizeFilename(base)
			}
		}
	}
	if name == "" {
		name = "image"
	}
	if path.Ext(name) == "" {
		mediaType, _, _ := mime.ParseMediaType(contentType)
		if ext, ok := imageExts[mediaType]; ok {
			name += ext
		}
	}
	return name
}
