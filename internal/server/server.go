package server

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/handlers"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/realtime"
	"github.com/emilythestrangee/stackit/backend/internal/services"
)

// Deps are the long-lived components the server routes to.
type Deps struct {
	Store    database.Service
	Services *services.Services
	Hub      *realtime.Hub
	Tokens   *auth.TokenManager
	Limiter  *middleware.RateLimiter
}

type Server struct {
	cfg     *config.Config
	deps    Deps
	handler *handlers.Handler
}

func New(cfg *config.Config, deps Deps) *Server {
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter(cfg.Voting.RatePerMinute, cfg.Voting.RateBurst)
	}
	return &Server{
		cfg:     cfg,
		deps:    deps,
		handler: handlers.NewHandler(deps.Store, deps.Services, deps.Tokens),
	}
}

// NewServer creates and configures the HTTP server
func NewServer(cfg *config.Config, deps Deps) *http.Server {
	s := New(cfg, deps)

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("server configured")

	return &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  cfg.Server.IdleTimeout,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", logging.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", logging.RequestIDHeader},
		MaxAge:        12 * 3600,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(), metrics.GinMiddleware())
	r.Use(cors.New(corsConfig(s.cfg.Server.CORSOrigins)))

	r.GET("/health", func(c *gin.Context) {
		stats := s.deps.Store.Health(c.Request.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		stats["ws_clients"] = strconv.Itoa(s.deps.Hub.ClientCount())
		c.JSON(status, stats)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", realtime.ServeWS(s.deps.Hub, s.deps.Tokens, realtime.NewUpgrader(s.cfg.Server.CORSOrigins)))

	h := s.handler
	requireAuth := middleware.AuthMiddleware(s.deps.Tokens)

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", h.Auth.Register)
		api.POST("/login", h.Auth.Login)

		// Public reads; a valid token still personalises user_vote
		api.GET("/questions/:id", middleware.OptionalAuth(s.deps.Tokens), h.Question.GetQuestion)
		api.GET("/questions/:id/answers", h.Question.ListAnswers)

		protected := api.Group("")
		protected.Use(requireAuth)
		{
			protected.GET("/me", h.Auth.GetMe)

			protected.POST("/questions", h.Question.CreateQuestion)
			protected.POST("/questions/:id/accept", h.Question.AcceptAnswer)
			protected.POST("/questions/accept-answer", h.Question.AcceptAnswerByBody)

			protected.POST("/answers", h.Answer.CreateAnswer)
			protected.POST("/answers/:id/comments", h.Answer.AddComment)
			protected.DELETE("/answers/:id", h.Answer.DeleteAnswer)

			protected.POST("/votes/:type/:id", s.deps.Limiter.Middleware(), h.Vote.Vote)

			protected.GET("/notifications", h.Notification.List)
			protected.GET("/notifications/unread-count", h.Notification.UnreadCount)
			protected.PUT("/notifications/read-all", h.Notification.MarkAllAsRead)
			protected.PUT("/notifications/:id/read", h.Notification.MarkAsRead)
			protected.DELETE("/notifications/:id", h.Notification.Delete)
		}
	}

	return r
}
