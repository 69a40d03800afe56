package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"speech-evaluator/internal/config"
	"speech-evaluator/internal/handlers"
	"speech-evaluator/internal/repositories"
	"speech-evaluator/internal/services"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	log.Info("database connected")

	sessionRepo := repositories.NewSessionRepository(db)

	provider, err := services.NewGeminiProvider(
		cfg.Gemini.APIKey,
		cfg.Worker.RetryMaxAttempts,
		cfg.Worker.RetryInitialDelay,
		log,
	)
	if err != nil {
		log.Fatal("failed to initialize model provider", zap.Error(err))
	}

	rubricService, err := services.NewRubricService(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
		provider,
		log,
	)
	if err != nil {
		log.Fatal("failed to initialize rubric knowledge base", zap.Error(err))
	}
	if err := rubricService.InitCollection(); err != nil {
		log.Fatal("failed to initialize rubric collection", zap.Error(err))
	}

	recoverer := services.NewJudgmentRecoverer(provider, services.NewPromptBuilder(), log)
	evaluator := services.NewEvaluatorService(recoverer, rubricService, log)
	coordinator := services.NewJobCoordinator(sessionRepo, evaluator, log)

	worker := services.NewWorker(coordinator, cfg.Worker.Concurrency, log)
	worker.Start(context.Background())

	analyzeHandler := handlers.NewAnalyzeHandler(sessionRepo, coordinator, worker)
	statusHandler := handlers.NewStatusHandler(sessionRepo, coordinator)

	app := fiber.New(fiber.Config{
		AppName:      "Speech Evaluator API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api.Post("/analyze", analyzeHandler.HandleAnalyze)
	api.Get("/analysis/:sessionId/:jobId", statusHandler.HandleGetStatus)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Speech Evaluator API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/analyze",
				"GET /api/v1/analysis/:sessionId/:jobId",
			},
		})
	})

	// Graceful shutdown: stop taking requests, let in-flight jobs drain.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		worker.Stop()
		if err := app.Shutdown(); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
