package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/joshua-takyi/staylink/internal/config"
	"github.com/joshua-takyi/staylink/internal/connect"
	"github.com/joshua-takyi/staylink/internal/container"
	"github.com/joshua-takyi/staylink/internal/routes"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	logger.Info("Starting StayLink API server", "environment", cfg.Environment)

	// Initialize database connections
	supaClient, err := connect.InitSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	if err != nil {
		logger.Error("Failed to connect to Supabase", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to Supabase successfully")

	var mongoClient *mongo.Client
	if cfg.MongoEnabled() {
		mongoClient, err = connect.MongoDBConnect(cfg.MongoDBURI, cfg.MongoDBPassword)
		if err != nil {
			logger.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		logger.Info("Connected to MongoDB successfully")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connect.RedisConnect(cfg.RedisURL)
		if err != nil {
			// the intent guard falls back to an in-process lock
			logger.Warn("Redis unavailable, using in-process payment guard", "error", err)
		} else {
			logger.Info("Connected to Redis successfully")
		}
	}

	// Initialize dependency container
	appContainer := container.NewContainer(logger, cfg, supaClient, mongoClient, redisClient)

	if appContainer.Mongo != nil {
		idxCtx, idxCancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := appContainer.Mongo.EnsureIndexes(idxCtx); err != nil {
			logger.Error("Failed to create MongoDB indexes", "error", err)
		}
		idxCancel()
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go appContainer.Sessions.Run(bgCtx, time.Minute, cfg.SessionIdle)

	// Setup routes
	router := routes.SetupRoutes(appContainer)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	stopBackground()

	// checkouts still waiting on a widget finish or time out here
	if err := appContainer.PaymentService.Drain(ctx); err != nil {
		logger.Error("Pending checkouts did not finish", "error", err)
	}
	if err := appContainer.Publisher.Close(); err != nil {
		logger.Error("Error closing event publisher", "error", err)
	}
	appContainer.Validator.Close()

	// Close database connections
	connect.Disconnect()
	if err := connect.MongoDBDisconnect(); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}
	if err := connect.RedisDisconnect(); err != nil {
		logger.Error("Error disconnecting from Redis", "error", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	level := parseLevel(cfg.LogLevel)

	if cfg.IsProduction() {
		// JSON logging for production
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		// Human-readable logging for development
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
