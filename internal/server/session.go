package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/unmark/internal/core/i18n"
)

// SessionRequest is the request body for POST /api/session
type SessionRequest struct {
	Cookie string `json:"cookie"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	t := i18n.GetTranslations(s.lang(c))

	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, t.Errors.InvalidBody)
		return
	}
	cookie := strings.TrimSpace(req.Cookie)
	if cookie == "" {
		s.fail(c, http.StatusBadRequest, t.Errors.EmptyCookie)
		return
	}

	token, expires := s.sessions.Put(cookie)
	s.ok(c, gin.H{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	}, "session created")
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.sessions.Delete(c.Param("token")) {
		s.fail(c, http.StatusNotFound, i18n.GetTranslations(s.lang(c)).Errors.SessionNotFound)
		return
	}
	s.ok(c, nil, "session deleted")
}
