package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"prepx_backend/internal/config"
	"prepx_backend/internal/controller"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/service"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/configwatcher"
	"prepx_backend/pkg/database"
	"prepx_backend/pkg/logger"
	"prepx_backend/pkg/monitoring"
	"prepx_backend/pkg/security"
	"prepx_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	learningPath *repository.LearningPathRepository
	quiz         *repository.QuizRepository
	progress     *repository.ProgressRepository
	chat         *repository.ChatRepository
	usage        service.UsageStore
}

type services struct {
	ai           *service.AIService
	generation   *service.GenerationService
	storage      *service.StorageService
	learningPath *service.LearningPathService
	quiz         *service.QuizService
	progress     *service.ProgressService
	chat         *service.ChatService
	usage        *service.UsageService
}

type controllers struct {
	generation   *controller.GenerationController
	learningPath *controller.LearningPathController
	quiz         *controller.QuizController
	usage        *controller.UsageController
	chat         *controller.ChatController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	repos := &repositories{
		learningPath: repository.NewLearningPathRepository(db),
		quiz:         repository.NewQuizRepository(db),
		progress:     repository.NewProgressRepository(db),
		chat:         repository.NewChatRepository(db),
	}

	if cfg.Usage.Store == util.UsageStoreRedis && rdb != nil {
		repos.usage = repository.NewUsageRedisRepository(rdb)
	} else {
		repos.usage = repository.NewUsageRepository(db)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.ai = service.NewAIService(cfg.AI)
	s.generation = service.NewGenerationService(s.ai, cfg.AI)
	s.storage = service.NewStorageService(cfg)
	s.learningPath = service.NewLearningPathService(repos.learningPath, s.storage)
	s.quiz = service.NewQuizService(repos.quiz, repos.learningPath)
	s.progress = service.NewProgressService(repos.progress, repos.learningPath)
	s.chat = service.NewChatService(repos.chat, repos.learningPath, s.ai, cfg.AI.ChatTimeout)
	s.usage = service.NewUsageService(repos.usage, cfg.Usage.Limits)

	// 配置热更新时重新应用用量上限
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.usage.SetLimits(newCfg.Usage.Limits)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		generation:   controller.NewGenerationController(s.generation, s.learningPath, s.quiz),
		learningPath: controller.NewLearningPathController(s.learningPath, s.progress, s.quiz),
		quiz:         controller.NewQuizController(s.quiz),
		usage:        controller.NewUsageController(s.usage),
		chat:         controller.NewChatController(s.chat),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startConfigWatcher 配置文件变更后依次调用已注册的回调
func (a *App) startConfigWatcher(ctx context.Context) {
	go func() {
		err := configwatcher.WatchConfig(ctx, a.ConfigDir, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	repos := app.initRepositories(db, rdb, cfg)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("prepx-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, services, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	a.startConfigWatcher(watchCtx)

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
