package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit config file is given; it may be absent.
const DefaultPath = "filesearch.yaml"

type Config struct {
	GoogleApiKey           string        `yaml:"googleApiKey"`
	DatabaseURL            string        `yaml:"databaseURL"`
	Model                  string        `yaml:"model"`
	Port                   string        `yaml:"port"`
	LogLevel               string        `yaml:"logLevel"`
	UseDefaultSystemPrompt bool          `yaml:"useDefaultSystemPrompt"`
	StoreDisplayName       string        `yaml:"storeDisplayName"`
	PollInterval           time.Duration `yaml:"pollInterval"`
	PageSize               int           `yaml:"pageSize"`
	ChunkSize              int           `yaml:"chunkSize"`
	ChunkOverlap           int           `yaml:"chunkOverlap"`
	MaxUploadBytes         int64         `yaml:"maxUploadBytes"`
	AllowedOrigins         []string      `yaml:"allowedOrigins"`
}

func defaults() *Config {
	return &Config{
		Model:                  "gemini-2.5-flash",
		Port:                   "8081",
		LogLevel:               "info",
		UseDefaultSystemPrompt: true,
		StoreDisplayName:       "my-file-search-store",
		PollInterval:           2 * time.Second,
		PageSize:               20,
		MaxUploadBytes:         100 << 20,
		AllowedOrigins:         []string{"*"},
	}
}

// Load reads path (DefaultPath when empty) if it exists, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.GoogleApiKey = getEnv("GOOGLE_API_KEY", cfg.GoogleApiKey)
	if cfg.GoogleApiKey == "" {
		cfg.GoogleApiKey = getEnv("GEMINI_API_KEY", "")
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Model = getEnv("GEMINI_MODEL", cfg.Model)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.UseDefaultSystemPrompt = getEnvAsBool("USE_DEFAULT_SYSTEM_PROMPT", cfg.UseDefaultSystemPrompt)
	cfg.StoreDisplayName = getEnv("STORE_DISPLAY_NAME", cfg.StoreDisplayName)
	cfg.PollInterval = getEnvAsDuration("POLL_INTERVAL", cfg.PollInterval)
	cfg.PageSize = getEnvAsInt("PAGE_SIZE", cfg.PageSize)
	cfg.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.MaxUploadBytes = int64(getEnvAsInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize && cfg.ChunkSize > 0 {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	return cfg, nil
}

// SlogLevel parses LogLevel, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
