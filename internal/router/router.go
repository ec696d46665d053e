package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/prepium/ieltsprep-backend/internal/config"
	"github.com/prepium/ieltsprep-backend/internal/handler"
	"github.com/prepium/ieltsprep-backend/internal/middleware"
	"github.com/prepium/ieltsprep-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(cfg.JWTSecret))
	{
		studentAPI.GET("/exams", handlers.Exam.ListExams)
		studentAPI.GET("/exams/:exam_id/paper", handlers.Exam.GetPaper)
		studentAPI.POST("/exams/:exam_id/attempts", handlers.Attempt.StartAttempt)

		studentAPI.GET("/attempts/:attempt_id/state", handlers.Attempt.GetState)
		studentAPI.POST("/attempts/:attempt_id/answers/:question_id", handlers.Attempt.SaveAnswer)
		studentAPI.DELETE("/attempts/:attempt_id/answers/:question_id", handlers.Attempt.DeleteAnswer)
		studentAPI.POST("/attempts/:attempt_id/flags/:question_id", handlers.Attempt.ToggleFlag)
		studentAPI.POST("/attempts/:attempt_id/navigate", handlers.Attempt.Navigate)
		studentAPI.POST("/attempts/:attempt_id/sections/:section_id/audio/ready", handlers.Attempt.AudioReady)
		studentAPI.POST("/attempts/:attempt_id/sections/:section_id/audio/failed", handlers.Attempt.AudioFailed)
		studentAPI.POST("/attempts/:attempt_id/review", handlers.Attempt.StartReview)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(cfg.JWTSecret))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
