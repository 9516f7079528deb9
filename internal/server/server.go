package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/guiyumin/unmark/internal/core/i18n"
	"github.com/guiyumin/unmark/internal/core/logx"
	"github.com/guiyumin/unmark/internal/core/session"
	"github.com/guiyumin/unmark/internal/core/version"
)

// Response is the standard API response structure. Error repeats Message on
// failures for clients of the original {success, error} shape.
type Response struct {
	Code    int         `json:"code"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Resolver runs the extraction pipeline
type Resolver interface {
	Resolve(ctx context.Context, rawText, credential string) (*extractor.Outcome, error)
}

// MediaPolicy decides which URLs the proxy may fetch
type MediaPolicy interface {
	AllowsMedia(rawURL string) bool
}

// Server is the HTTP server for unmark
type Server struct {
	port     int
	apiKey   string
	cfg      *config.Config
	pipeline Resolver
	media    MediaPolicy
	sessions *session.Store
	upstream *http.Client
	server   *http.Server
	engine   *gin.Engine
}

// NewServer creates a server around a pipeline. A zero port uses the
// configured one.
func NewServer(cfg *config.Config, port int, pipeline Resolver, media MediaPolicy) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.ApplyDefaults()
	if port <= 0 {
		port = cfg.Server.Port
	}
	s := &Server{
		port:     port,
		apiKey:   cfg.Server.APIKey,
		cfg:      cfg,
		pipeline: pipeline,
		media:    media,
		sessions: session.NewStore(cfg.Server.SessionTTL),
		upstream: extractor.NewHTTPClient(0, extractor.BrowserHeaders{
			UserAgent:      cfg.Resolver.UserAgent,
			AcceptLanguage: cfg.Resolver.AcceptLanguage,
			Referer:        cfg.Resolver.Referer,
		}),
	}
	s.upstream.CheckRedirect = s.checkProxyRedirect
	s.engine = s.routes()
	return s
}

// Handler exposes the gin engine, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Sessions returns the cookie session store
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(s.requestLogger())
	engine.Use(s.recovery())
	engine.Use(s.corsMiddleware())
	if s.apiKey != "" {
		engine.Use(s.authMiddleware())
	}

	engine.GET("/health", s.handleHealth)

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/parse", s.handleParse)
	api.POST("/session", s.handleCreateSession)
	api.DELETE("/session/:token", s.handleDeleteSession)
	api.GET("/proxy", s.handleProxy)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Message: "not found",
			Error:   "not found",
		})
	})
	return engine
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	t := i18n.GetTranslations(s.cfg.Language)
	log := logx.FromContext(context.Background())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // proxy streams are bounded by proxy.timeout
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Int("port", s.port).Msg(fmt.Sprintf(t.Server.Starting, s.port))
	if s.apiKey != "" {
		log.Info().Msg(t.Server.APIKeyEnabled)
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	logx.FromContext(ctx).Info().Msg(i18n.GetTranslations(s.cfg.Language).Server.ShuttingDown)
	defer extractor.CloseIdleConnections()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// lang picks the reason-string language: Accept-Language first, then config
func (s *Server) lang(c *gin.Context) string {
	if l := i18n.Normalize(c.GetHeader("Accept-Language")); l != "" {
		return l
	}
	return s.cfg.Language
}

func (s *Server) fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Success: false,
		Message: message,
		Error:   message,
	})
}

func (s *Server) ok(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Success: true,
		Data:    data,
		Message: message,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	s.ok(c, gin.H{
		"status":  "ok",
		"version": version.Version,
	}, i18n.GetTranslations(s.lang(c)).Server.Healthy)
}
