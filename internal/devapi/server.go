// Package devapi is a local reference backend for the console: the auth,
// leads, users, chat and messaging endpoints over gin and the SQLite store.
package devapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nilcar/leads-console/internal/assistant"
	"github.com/nilcar/leads-console/internal/bus"
	"github.com/nilcar/leads-console/internal/ingest"
	"github.com/nilcar/leads-console/internal/metrics"
	"github.com/nilcar/leads-console/internal/store"
)

// Config controls the dev API server.
type Config struct {
	Bind      string
	JWTSecret string
	TokenTTL  time.Duration
	// ResetTTL is how long a password recovery token stays usable.
	ResetTTL time.Duration
	// ImportRPS limits POST /leads/import. 0 disables limiting.
	ImportRPS int
	// MaxBodyBytes caps import payloads; defaults to 10 MiB.
	MaxBodyBytes int64
	// RequestLog enables gin's per-request access log.
	RequestLog bool
}

// Options carries the collaborators of a Server. Nil fields get defaults.
type Options struct {
	Responder assistant.Responder
	Bus       bus.Bus
	Mailer    Mailer
	Logger    *log.Logger
}

// Server is the dev API.
type Server struct {
	cfg       Config
	store     *store.Store
	tokens    *TokenService
	responder assistant.Responder
	importer  *ingest.Importer
	limiter   *ingest.Limiter
	mailer    Mailer
	logger    *log.Logger
	engine    *gin.Engine
}

// New builds the server and its routes.
func New(st *store.Store, cfg Config, opts Options) *Server {
	if cfg.Bind == "" {
		cfg.Bind = ":8091"
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024 // 10 MiB
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[devapi] ", log.LstdFlags)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		cfg.JWTSecret = uuid.NewString()
		logger.Printf("devapi.jwt_secret not set; using a random secret, tokens will not survive a restart")
	}
	if opts.Responder == nil {
		opts.Responder = assistant.NewLocal(st, logger)
	}
	if opts.Mailer == nil {
		opts.Mailer = NewLogMailer(logger)
	}

	registerValidations()

	s := &Server{
		cfg:       cfg,
		store:     st,
		tokens:    NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		responder: opts.Responder,
		importer:  ingest.NewImporter(ingest.NewParser(), st, opts.Bus, logger),
		limiter:   ingest.NewLimiter(cfg.ImportRPS, 0),
		mailer:    opts.Mailer,
		logger:    logger,
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Tokens exposes the token service so tools can mint tokens for seeded users.
func (s *Server) Tokens() *TokenService { return s.tokens }

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.GinMiddleware())
	if s.cfg.RequestLog {
		router.Use(gin.LoggerWithWriter(s.logger.Writer()))
	}

	router.GET("/healthz", func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/auth", s.login)
		api.POST("/password-recovery/forgot-password", s.forgotPassword)
		api.POST("/auth/reset-password", s.resetPassword)
	}

	protected := api.Group("")
	protected.Use(s.requireAuth())
	{
		protected.POST("/auth/validate", s.validateSession)
		protected.GET("/leads", s.listLeads)
		protected.POST("/internal-chat", s.internalChat)
		protected.POST("/whatsapp/messages/send-template", s.sendTemplate)
	}

	admin := protected.Group("")
	admin.Use(s.requireAdmin())
	{
		admin.POST("/auth/signup", s.signup)
		admin.GET("/users", s.listUsers)
		admin.PUT("/users", s.updateUser)
		admin.DELETE("/users/:id", s.deleteUser)
		admin.POST("/leads/import", s.importLeads)
		admin.GET("/audit", s.listAudit)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})
	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// Bind early to surface errors synchronously
	ln, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Bind, err)
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Printf("dev API listening on http://%s/api", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.limiter.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Printf("graceful shutdown failed: %v", err)
	}
	s.limiter.Close()
	return nil
}

// Close releases background resources when the server was used only as a Handler.
func (s *Server) Close() {
	s.limiter.Close()
}

func (s *Server) audit(ctx context.Context, action, actor, subject string, details map[string]interface{}) {
	if err := s.store.LogAction(ctx, action, actor, subject, details); err != nil {
		s.logger.Printf("audit %s: %v", action, err)
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
