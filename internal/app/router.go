package app

import (
	"prepx_backend/docs"
	"prepx_backend/internal/config"
	"prepx_backend/internal/middleware"
	"prepx_backend/internal/model"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(&cfg.JWT))
	{
		a.registerGenerationRoutes(api, c, s)
		a.registerPathRoutes(api, c)
		a.registerQuizRoutes(api, c)

		api.GET("/usage", c.usage.Summary)
		api.POST("/usage/:feature/check", c.usage.Check)

		api.POST("/chat", middleware.UsageGate(s.usage, model.FeatureChat), c.chat.Ask)
		api.GET("/chat/sessions/:id", c.chat.History)

		admin := api.Group("/admin", middleware.RoleMiddleware(util.RoleAdmin))
		admin.GET("/usage/:userId", c.usage.UserSummary)
	}
}

// 每次生成消耗对应功能的配额
func (a *App) registerGenerationRoutes(api *gin.RouterGroup, c *controllers, s *services) {
	gen := api.Group("/generate")
	{
		gen.POST("/path", middleware.UsageGate(s.usage, model.FeaturePathGeneration), c.generation.GeneratePath)
		gen.POST("/content", middleware.UsageGate(s.usage, model.FeatureContentGeneration), c.generation.GenerateContent)
		gen.POST("/quiz", middleware.UsageGate(s.usage, model.FeatureQuiz), c.generation.GenerateQuiz)
	}
}

func (a *App) registerPathRoutes(api *gin.RouterGroup, c *controllers) {
	paths := api.Group("/paths")
	{
		paths.POST("", c.learningPath.CreatePath)
		paths.GET("", c.learningPath.ListPaths)
		paths.GET("/:id", c.learningPath.GetPath)
		paths.PUT("/:id", c.learningPath.UpdatePath)
		paths.DELETE("/:id", c.learningPath.DeletePath)
		paths.POST("/:id/clone", c.learningPath.ClonePath)
		paths.GET("/:id/source", c.learningPath.GetSource)
		paths.GET("/:id/progress", c.learningPath.GetProgress)
		paths.GET("/:id/quizzes", c.learningPath.ListQuizzes)
	}

	api.PUT("/items/:id/progress", c.learningPath.SetItemProgress)
}

func (a *App) registerQuizRoutes(api *gin.RouterGroup, c *controllers) {
	quizzes := api.Group("/quizzes")
	{
		quizzes.POST("", c.quiz.CreateQuiz)
		quizzes.GET("/:id", c.quiz.GetQuiz)
		quizzes.POST("/:id/attempts", c.quiz.SubmitAttempt)
		quizzes.GET("/:id/attempts", c.quiz.ListAttempts)
	}
}
