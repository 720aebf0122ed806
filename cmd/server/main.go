package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/agent"
	"github.com/Ayash-Bera/shopassist/backend/internal/api"
	"github.com/Ayash-Bera/shopassist/backend/internal/api/handlers"
	"github.com/Ayash-Bera/shopassist/backend/internal/config"
	"github.com/Ayash-Bera/shopassist/backend/internal/database"
	"github.com/Ayash-Bera/shopassist/backend/internal/health"
	"github.com/Ayash-Bera/shopassist/backend/internal/llm"
	"github.com/Ayash-Bera/shopassist/backend/internal/metrics"
	"github.com/Ayash-Bera/shopassist/backend/internal/middleware"
	"github.com/Ayash-Bera/shopassist/backend/internal/migration"
	"github.com/Ayash-Bera/shopassist/backend/internal/parser"
	"github.com/Ayash-Bera/shopassist/backend/internal/repository"
	"github.com/Ayash-Bera/shopassist/backend/internal/services"
	"github.com/Ayash-Bera/shopassist/backend/internal/tools"
	"github.com/Ayash-Bera/shopassist/backend/internal/vectorstore"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	healthCheckInterval = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL:  cfg.Database.URL,
		RedisURL:     cfg.Redis.URL,
		RedisEnabled: cfg.Redis.Enabled,
		LogLevel:     cfg.LogLevel,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := migration.NewRunner(dbManager.DB, dbManager, logger).RunMigrations(cfg.Migrations.Path); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	recorder := metrics.NewRecorder()
	repoManager := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)

	chatClient := llm.NewChatClient(endpointConfig(cfg.LLM), logger)
	embedder := tools.NewCachedEmbedder(
		llm.NewEmbedder(endpointConfig(cfg.Embedding.Endpoint), cfg.Embedding.Dimensions, logger),
		cache, cfg.Embedding.CacheTTL, recorder, logger,
	)

	store, err := vectorstore.NewPGVectorStore(dbManager.DB, vectorstore.Config{
		LibraryID:     cfg.Vector.LibraryID,
		Table:         cfg.Vector.Table,
		Distance:      cfg.Vector.Distance,
		QueryTimeout:  cfg.Vector.QueryTimeout,
		MaxConcurrent: cfg.Vector.MaxConcurrent,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize vector store")
	}

	assistant := agent.New(
		chatClient,
		[]tools.Tool{tools.NewProductSearchTool(embedder, store, recorder, logger)},
		parser.New(recorder, logger),
		agent.Config{MaxToolRounds: cfg.Agent.MaxToolRounds},
		recorder,
		logger,
	)
	chatService := services.NewChatService(assistant, repoManager, cache, recorder, logger)

	healthChecker := health.NewHealthChecker(dbManager, repoManager.SystemHealth, chatClient, logger)
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerMinute)

	router := api.NewRouter(api.RouterDeps{
		Chat: handlers.NewChatHandler(chatService, handlers.ChatLimits{
			MaxMessageChars: cfg.Server.MaxMessageChars,
			MaxHistoryTurns: cfg.Server.MaxHistoryTurns,
			RequestTimeout:  cfg.Server.RequestTimeout,
		}, logger),
		Queries:     handlers.NewQueryHandler(chatService, logger),
		Health:      handlers.NewHealthHandler(healthChecker),
		RateLimiter: rateLimiter,
		Metrics:     recorder,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go healthChecker.PeriodicHealthCheck(ctx, healthCheckInterval)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting chat server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	chatService.Wait()
	rateLimiter.Stop()
	logger.Info("Server stopped")
}

func endpointConfig(e config.Endpoint) llm.Config {
	return llm.Config{
		Provider:    e.Provider,
		APIKey:      e.APIKey,
		BaseURL:     e.BaseURL,
		Model:       e.Model,
		APIVersion:  e.APIVersion,
		Timeout:     e.Timeout,
		Temperature: e.Temperature,
	}
}
