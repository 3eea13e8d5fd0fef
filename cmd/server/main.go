package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mikeboe/filesearch-dashboard/pkg/config"
	"github.com/mikeboe/filesearch-dashboard/pkg/database"
	"github.com/mikeboe/filesearch-dashboard/pkg/gemini"
	"github.com/mikeboe/filesearch-dashboard/pkg/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("FILESEARCH_CONFIG"))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))

	// Database is optional; without it history and logs are not kept
	var db *database.PostgresDB
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgresDB(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		// Initialize Schema
		if err := db.InitSchema(context.Background()); err != nil {
			slog.Error("Failed to initialize schema", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("DATABASE_URL not set, history is disabled")
	}

	// Initialize Service & Handler
	svc := server.NewService(db, cfg, gemini.NewFactory(gemini.OptionsFromConfig(cfg)))
	h := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))
	r.MaxMultipartMemory = 32 << 20

	h.RegisterRoutes(r)

	fmt.Printf("Server starting on port %s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
