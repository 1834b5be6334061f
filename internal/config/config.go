package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort            string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins string

	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	StorageBackend     string // "local" or "supabase"
	LocalStorageDir    string
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	GeminiAPIKey   string
	OpenAIAPIKey   string
	PromptProvider string // "gemini" or "openai"
	FalAPIKey      string

	MaxConcurrentStyleTransfers    int
	MaxConcurrentVideoGenerations  int
	MaxConcurrentExports           int
	MaxConcurrentPromptGenerations int

	StuckJobTimeout     time.Duration
	StuckExportTimeout  time.Duration
	StuckSweepInterval  time.Duration
	ExportRetentionDays int
	CleanupEnabled      bool

	FFmpegTempDir string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),

		StorageBackend:     getEnv("STORAGE_BACKEND", "local"),
		LocalStorageDir:    getEnv("LOCAL_STORAGE_DIR", "./uploads"),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "memoryreel"),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		PromptProvider: getEnv("PROMPT_PROVIDER", "gemini"),
		FalAPIKey:      getEnv("FAL_KEY", ""),

		MaxConcurrentStyleTransfers:    getEnvInt("MAX_CONCURRENT_STYLE_TRANSFERS", 3),
		MaxConcurrentVideoGenerations:  getEnvInt("MAX_CONCURRENT_VIDEO_GENERATIONS", 5),
		MaxConcurrentExports:           getEnvInt("MAX_CONCURRENT_EXPORTS", 2),
		MaxConcurrentPromptGenerations: getEnvInt("MAX_CONCURRENT_PROMPT_GENERATIONS", 4),

		StuckJobTimeout:     time.Duration(getEnvInt("STUCK_JOB_TIMEOUT_MINUTES", 30)) * time.Minute,
		StuckExportTimeout:  time.Duration(getEnvInt("STUCK_EXPORT_TIMEOUT_MINUTES", 120)) * time.Minute,
		StuckSweepInterval:  time.Duration(getEnvInt("STUCK_SWEEP_INTERVAL_SECONDS", 120)) * time.Second,
		ExportRetentionDays: getEnvInt("EXPORT_RETENTION_DAYS", 7),
		CleanupEnabled:      getEnvBool("ORPHAN_CLEANUP_ENABLED", true),

		FFmpegTempDir: getEnv("FFMPEG_TEMP_DIR", os.TempDir()),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.StorageBackend != "local" && c.StorageBackend != "supabase" {
		return fmt.Errorf("STORAGE_BACKEND must be 'local' or 'supabase', got %q", c.StorageBackend)
	}
	if c.StorageBackend == "supabase" {
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORAGE_BACKEND=supabase")
		}
	}
	if c.PromptProvider != "gemini" && c.PromptProvider != "openai" {
		return fmt.Errorf("PROMPT_PROVIDER must be 'gemini' or 'openai', got %q", c.PromptProvider)
	}
	for name, v := range map[string]int{
		"MAX_CONCURRENT_STYLE_TRANSFERS":    c.MaxConcurrentStyleTransfers,
		"MAX_CONCURRENT_VIDEO_GENERATIONS":  c.MaxConcurrentVideoGenerations,
		"MAX_CONCURRENT_EXPORTS":            c.MaxConcurrentExports,
		"MAX_CONCURRENT_PROMPT_GENERATIONS": c.MaxConcurrentPromptGenerations,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be a positive integer", name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
