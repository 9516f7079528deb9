package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/guiyumin/unmark/internal/core/i18n"
	"github.com/guiyumin/unmark/internal/core/logx"
)

// ParseRequest is the request body for POST /api/parse
type ParseRequest struct {
	// ShortLink is the pasted share text, not necessarily a bare URL
	ShortLink string `json:"short_link"`
	// Session is a token from POST /api/session
	Session string `json:"session,omitempty"`
}

func (s *Server) handleParse(c *gin.Context) {
	t := i18n.GetTranslations(s.lang(c))

	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, t.Errors.InvalidBody)
		return
	}
	text := strings.TrimSpace(req.ShortLink)
	if text == "" {
		s.fail(c, http.StatusBadRequest, t.Errors.EmptyInput)
		return
	}

	// one session read per request; the credential is fixed from here on
	var credential string
	if req.Session != "" {
		cred, ok := s.sessions.Get(req.Session)
		if !ok {
			s.fail(c, http.StatusBadRequest, t.Errors.SessionNotFound)
			return
		}
		credential = cred
	}

	out, err := s.pipeline.Resolve(c.Request.Context(), text, credential)
	if err != nil {
		status, message := errorResponse(t, err)
		logx.FromContext(c.Request.Context()).Info().
			Err(err).
			Str("code", string(extractor.CodeOf(err))).
			Msg("parse failed")
		s.fail(c, status, message)
		return
	}
	s.ok(c, out, "ok")
}

// errorResponse maps a pipeline error to an HTTP status and reason string
func errorResponse(t *i18n.Translations, err error) (int, string) {
	switch extractor.CodeOf(err) {
	case extractor.CodeInput:
		return http.StatusBadRequest, t.Errors.NoURL
	case extractor.CodeNetwork:
		var ne *extractor.NetworkError
		if errors.As(err, &ne) && ne.Timeout() {
			return http.StatusBadGateway, t.Errors.Timeout
		}
		return http.StatusBadGateway, t.Errors.Network
	case extractor.CodeNotFound:
		return http.StatusNotFound, t.Errors.NotFound
	}
	return http.StatusInternalServerError, t.Errors.Internal
}
