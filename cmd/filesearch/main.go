package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mikeboe/filesearch-dashboard/pkg/config"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/mikeboe/filesearch-dashboard/pkg/gemini"
)

func geminiFactory(cfg *config.Config) filesearch.Factory {
	return gemini.NewFactory(gemini.OptionsFromConfig(cfg))
}

func main() {
	// A missing .env is fine as long as the environment is set
	_ = godotenv.Load()

	if err := newRootCmd(geminiFactory).Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
