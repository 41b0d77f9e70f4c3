package router

import (
	"context"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/config"
	"github.com/stemsi/exstem-papers/internal/handler"
	"github.com/stemsi/exstem-papers/internal/middleware"
	"github.com/stemsi/exstem-papers/internal/response"
	"github.com/stemsi/exstem-papers/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Paper       *handler.PaperHandler
	StudentExam *handler.StudentExamHandler
	Monitor     *handler.MonitorHandler
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker func(ctx context.Context) error

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	health map[string]HealthChecker,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

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
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))
	router.Use(middleware.Brotli(brotli.DefaultCompression))

	router.GET("/health", healthHandler(health))

	// ─── 1. Student Group (JWT + Rate Limit) ───────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService), middleware.NoStore())
	{
		studentAPI.GET("/exams/available", handlers.StudentExam.ListAvailableExams)
		studentAPI.POST("/exams/:exam_id/start", limiter.Middleware(), handlers.StudentExam.StartExam)
		studentAPI.POST("/exams/:exam_id/submit", limiter.Middleware(), handlers.StudentExam.SubmitExam)
		studentAPI.GET("/records", handlers.StudentExam.ListRecords)
		studentAPI.GET("/records/:record_id", handlers.StudentExam.GetRecord)
	}

	// ─── 2. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.GET("/exams/:exam_id/papers", handlers.Paper.ListExamPapers)

		papers := teacherAPI.Group("/papers")
		papers.POST("", handlers.Paper.CreatePaper)
		papers.POST("/generate", handlers.Paper.GeneratePaper)
		papers.GET("/:paper_id", handlers.Paper.GetPaper)
		papers.PUT("/:paper_id", handlers.Paper.UpdatePaper)
		papers.DELETE("/:paper_id", handlers.Paper.DeletePaper)
		papers.GET("/:paper_id/preview", handlers.Paper.PreviewPaper)
		papers.GET("/:paper_id/statistics", handlers.Paper.PaperStatistics)
		papers.POST("/:paper_id/questions", handlers.Paper.AddQuestion)
		papers.POST("/:paper_id/questions/batch", handlers.Paper.BatchAddQuestions)
		papers.DELETE("/:paper_id/questions/:question_id", handlers.Paper.RemoveQuestion)
		papers.PUT("/:paper_id/questions/order", handlers.Paper.UpdateOrder)
		papers.POST("/:paper_id/publish", handlers.Paper.PublishPaper)
		papers.POST("/:paper_id/archive", handlers.Paper.ArchivePaper)
		papers.POST("/:paper_id/copy", handlers.Paper.CopyPaper)
	}

	// ─── 3. WebSocket Group (Teacher WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireTeacherWSAuth(authService))
	{
		ws.GET("/teacher/exams/:exam_id/monitor", handlers.Monitor.MonitorExam)
	}

	return router
}

func healthHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := gin.H{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("dependency", name).Msg("Health check failed")
				result[name] = "down"
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				continue
			}
			result[name] = "up"
		}
		response.Success(c, status, result)
	}
}
