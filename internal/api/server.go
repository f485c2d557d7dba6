// Package api exposes the compliance engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/terminal-bench/fleetcompliance/internal/auth"
	"github.com/terminal-bench/fleetcompliance/internal/banking"
	"github.com/terminal-bench/fleetcompliance/internal/comparison"
	"github.com/terminal-bench/fleetcompliance/internal/compliance"
	"github.com/terminal-bench/fleetcompliance/internal/pooling"
	"github.com/terminal-bench/fleetcompliance/pkg/ratelimit"
)

// Config holds HTTP layer settings.
type Config struct {
	// JWTSecret enables bearer authentication on mutating routes when set.
	JWTSecret string
	// RateLimitRequests per RateLimitWindow and client IP; zero disables.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// Limiter overrides the in-process limiter built from the values above.
	Limiter ratelimit.Limiter
}

// Services are the domain services served by the API.
type Services struct {
	Compliance *compliance.Service
	Ledger     *banking.Ledger
	Pools      *pooling.Service
	Routes     *comparison.Service
}

// Server is the HTTP front of the compliance engine.
type Server struct {
	router   *gin.Engine
	svc      Services
	hub      *Hub
	limiter  ratelimit.Limiter
	verifier *auth.Verifier
	log      logrus.FieldLogger
}

// NewServer builds the router. hub may be nil, which disables /ws/events.
func NewServer(cfg Config, svc Services, hub *Hub, log logrus.FieldLogger) *Server {
	useJSONNames()
	s := &Server{
		router: gin.New(),
		svc:    svc,
		hub:    hub,
		log:    log.WithField("component", "api"),
	}
	switch {
	case cfg.Limiter != nil:
		s.limiter = cfg.Limiter
	case cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0:
		s.limiter = ratelimit.NewWindow(cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if cfg.JWTSecret != "" {
		s.verifier = auth.NewVerifier(cfg.JWTSecret)
	}

	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter returns the rate limiter, or nil when limiting is disabled.
func (s *Server) Limiter() ratelimit.Limiter {
	return s.limiter
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.tracingMiddleware())
	s.router.Use(s.loggingMiddleware())
	if s.limiter != nil {
		s.router.Use(s.rateLimitMiddleware())
	}

	s.router.GET("/health", s.healthCheck)

	routes := s.router.Group("/routes")
	{
		routes.GET("", s.listRoutes)
		routes.GET("/comparison", s.compareRoutes)
		routes.POST("/:id/baseline", s.authMiddleware(), s.setBaseline)
	}

	cb := s.router.Group("/compliance")
	{
		cb.GET("/cb", s.computeBalance)
		cb.GET("/adjusted-cb", s.adjustedBalance)
	}

	bank := s.router.Group("/banking")
	{
		bank.GET("/records", s.bankRecords)
		bank.POST("/bank", s.authMiddleware(), s.bankSurplus)
		bank.POST("/apply", s.authMiddleware(), s.applyBanked)
	}

	pools := s.router.Group("/pools")
	{
		pools.POST("", s.authMiddleware(), s.createPool)
		pools.GET("/:id/members", s.poolMembers)
	}

	if s.hub != nil {
		s.router.GET("/ws/events", s.hub.serveWS)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
