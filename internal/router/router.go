package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/handler"
	"github.com/openprep/exam-gateway/internal/middleware"
	"github.com/openprep/exam-gateway/internal/response"
	"github.com/openprep/exam-gateway/internal/session"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, manager *session.Manager, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": manager.Count(),
		})
	})

	// Rate limiter for submissions: each retry multiplies answer-key fetches
	// against upstream.
	submitLimiter := middleware.NewRateLimiter(10, time.Minute)

	// ─── Exam session API (JWT) ────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireAuth(cfg.JWTSecret))
	{
		exams := api.Group("/exams/:exam_id")
		{
			exams.POST("/session", handlers.Session.StartSession)
			exams.GET("/session", handlers.Session.GetSession)
			exams.DELETE("/session", handlers.Session.AbandonSession)
			exams.PUT("/session/answer", handlers.Session.SelectAnswer)
			exams.PUT("/session/flag", handlers.Session.ToggleFlag)
			exams.PUT("/session/position", handlers.Session.GoTo)
			exams.POST("/session/submit", submitLimiter.Middleware(), handlers.Session.Submit)
			exams.GET("/result", handlers.Session.GetResult)
		}
	}

	// ─── WebSocket (token via query param) ─────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAuth(cfg.JWTSecret))
	{
		ws.GET("/exams/:exam_id/stream", handlers.WS.Stream)
	}

	return router
}
