package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"learnrank/internal/adapter"
	"learnrank/internal/cache"
	"learnrank/internal/config"
	"learnrank/internal/database"
	"learnrank/internal/handler"
	"learnrank/internal/logger"
	"learnrank/internal/middleware"
	"learnrank/internal/repository"
	"learnrank/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	// Connect to database
	db, err := database.NewSQLXOracleDB(cfg.GetDSN())
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Initialize repositories
	rankingRepository := repository.NewSQLXRankingRepository(db)
	userRepository := repository.NewSQLXUserRepository(db)
	progressRepository := repository.NewSQLXProgressRepository(db)
	txManager := repository.NewTransactionManagerAdapter(db)

	// Initialize Redis-backed leaderboard cache
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	appLogger.Info("Successfully connected to Redis")
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)

	// Initialize services
	rankingService := service.NewRankingService(rankingRepository, userRepository, progressRepository, txManager, cacheAdapter, cfg)
	appLogger.Info("RankingService initialized")
	completionService := service.NewCompletionService(progressRepository, userRepository, rankingService, txManager, cfg)
	appLogger.Info("CompletionService initialized")

	// Initialize handlers
	rankingHandler := handler.NewRankingHandler(rankingService)
	progressHandler := handler.NewProgressHandler(completionService)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,PUT,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept,Authorization", MaxAge: 300}))
	app.Use(recover.New())

	// API group
	apiGroup := app.Group("/api")

	// Completion ingestion
	apiGroup.Post("/progress", progressHandler.RecordCompletion)

	// Leaderboard reads
	validationMw := middleware.NewValidationMiddleware()
	rankingGroup := apiGroup.Group("/rankings")
	rankingGroup.Get("/leaderboard", validationMw.ValidateLeaderboardParams(), rankingHandler.GetLeaderboard)
	rankingGroup.Get("/users/:user_id", validationMw.ValidateUserIDParam(), rankingHandler.GetUserRank)

	// Administrative rollover and backfill
	adminOnly := middleware.AdminOnly(cfg.Auth.JWTSecret)
	rankingGroup.Post("/flip-week", adminOnly, rankingHandler.FlipWeek)
	rankingGroup.Post("/flip-month", adminOnly, rankingHandler.FlipMonth)
	rankingGroup.Post("/backfill", adminOnly, rankingHandler.Backfill)

	// Row-level ranking overrides (admin)
	adminGroup := apiGroup.Group("/admin/rankings", adminOnly)
	adminGroup.Get("/", rankingHandler.ListRankings)
	adminGroup.Get("/:id", rankingHandler.GetRanking)
	adminGroup.Post("/", rankingHandler.CreateRanking)
	adminGroup.Put("/:id", rankingHandler.UpdateRanking)
	adminGroup.Delete("/:id", rankingHandler.DeleteRanking)

	// Start server
	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", os.Getenv("ENV")))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
