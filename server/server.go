// Package server exposes the request orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/s0up4200/requestarr/requests"
	"github.com/s0up4200/requestarr/session"
	"github.com/s0up4200/requestarr/store"
)

const (
	requestIDHeader    = "X-Request-Id"
	sessionTokenHeader = "X-Session-Token"
	defaultCookieName  = "sessionid"
	shutdownTimeout    = 10 * time.Second
)

// Orchestrator is the subset of requests.Service served over HTTP
type Orchestrator interface {
	CreateMovie(ctx context.Context, token string, in requests.MovieInput) (*store.Record, error)
	CreateShow(ctx context.Context, token string, in requests.ShowInput) (*requests.ShowResult, error)
	Delete(ctx context.Context, token string, kind store.Kind, id int64) error
	List(ctx context.Context, token string, kind store.Kind, ownOnly bool) ([]*store.Record, error)
	Get(ctx context.Context, token string, kind store.Kind, id int64) (*store.Record, error)
}

// Config configures the HTTP server
type Config struct {
	Addr       string
	CookieName string
	// Sessions rejects callers without a valid session before any payload
	// is read.
	Sessions session.Resolver
	// PublicDetail serves GET /api/{kind}s/:id without a session
	PublicDetail bool
}

// Server serves the request API
type Server struct {
	engine     *gin.Engine
	svc        Orchestrator
	sessions   session.Resolver
	validate   *validatorv10.Validate
	cookieName string
	addr       string
	logger     zerolog.Logger
}

// New builds the router
func New(cfg Config, svc Orchestrator, logger zerolog.Logger) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session resolver is required")
	}
	gin.SetMode(gin.ReleaseMode)

	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = defaultCookieName
	}

	s := &Server{
		engine:     gin.New(),
		svc:        svc,
		sessions:   cfg.Sessions,
		validate:   newValidator(),
		cookieName: cookieName,
		addr:       cfg.Addr,
		logger:     logger.With().Str("component", "server").Logger(),
	}

	s.engine.Use(gin.Recovery(), s.requestID(), s.accessLog())
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	authed := api.Group("", s.requireSession())
	detail := authed
	if cfg.PublicDetail {
		detail = api
	}

	authed.POST("/movies", s.createMovie)
	authed.POST("/shows", s.createShow)
	for _, kind := range []store.Kind{store.KindMovie, store.KindShow} {
		path := "/" + string(kind) + "s"
		authed.GET(path, s.list(kind))
		detail.GET(path+"/:id", s.get(kind))
		authed.DELETE(path+"/:id", s.delete(kind))
	}

	return s, nil
}

// Handler returns the router as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requireSession aborts with 401 unless the caller's token resolves to a
// session. The orchestrator resolves the session again for its own use.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := s.sessions.Resolve(c.Request.Context(), s.token(c)); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := s.logger.Info()
		if status >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// token reads the session token from the session cookie, falling back to
// the X-Session-Token header.
func (s *Server) token(c *gin.Context) string {
	if cookie, err := c.Cookie(s.cookieName); err == nil && cookie != "" {
		return cookie
	}
	return c.GetHeader(sessionTokenHeader)
}
