package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memoryreel-backend/internal/api"
	"memoryreel-backend/internal/config"
	"memoryreel-backend/internal/db"
	"memoryreel-backend/internal/notify"
	"memoryreel-backend/internal/services"
	"memoryreel-backend/internal/storage"
	"memoryreel-backend/internal/worker"
)

func main() {
	log.Println("Starting Memory Reel API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database. Background tasks get their own pool so a burst of
	// provider work never starves request handling.
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	taskDB, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database (worker pool): %v", err)
	}
	defer taskDB.Close()
	log.Println("Connected to database")

	// Connect to Redis for client notifications
	notifier, err := notify.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer notifier.Close()
	log.Println("Connected to Redis")

	// Initialize blob storage
	var blob storage.Store
	var localFilesDir string
	switch cfg.StorageBackend {
	case "supabase":
		blob = storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		log.Printf("Storage backend: Supabase (bucket: %s)", cfg.SupabaseBucket)
	default:
		local, err := storage.NewLocal(cfg.LocalStorageDir)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		blob = local
		localFilesDir = cfg.LocalStorageDir
		log.Printf("Storage backend: local (%s)", cfg.LocalStorageDir)
	}

	// Initialize provider services
	styler := services.NewGeminiService(cfg.GeminiAPIKey)

	var prompter services.PromptProvider
	switch cfg.PromptProvider {
	case "openai":
		prompter = services.NewOpenAIPromptService(cfg.OpenAIAPIKey)
		log.Println("Prompt provider: OpenAI GPT-4o")
	default:
		prompter = services.NewGeminiPromptService(cfg.GeminiAPIKey)
		log.Println("Prompt provider: Gemini")
	}

	videoSvc := services.NewKlingVideoService(cfg.FalAPIKey)

	ffmpegSvc, err := services.NewFFmpegService(cfg.FFmpegTempDir)
	if err != nil {
		log.Fatalf("Failed to initialize ffmpeg: %v", err)
	}

	// Background tasks get their own lifetime, cancelled at shutdown
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	w := worker.New(workerCtx, worker.Deps{
		Store:    taskDB,
		Blob:     blob,
		Styler:   styler,
		Prompter: prompter,
		Video:    videoSvc,
		Media:    ffmpegSvc,
		Notifier: notifier,
	}, worker.Limits{
		StyleTransfers:    cfg.MaxConcurrentStyleTransfers,
		VideoGenerations:  cfg.MaxConcurrentVideoGenerations,
		Exports:           cfg.MaxConcurrentExports,
		PromptGenerations: cfg.MaxConcurrentPromptGenerations,
	}, worker.Config{
		StuckJobTimeout:     cfg.StuckJobTimeout,
		StuckExportTimeout:  cfg.StuckExportTimeout,
		StuckSweepInterval:  cfg.StuckSweepInterval,
		ExportRetentionDays: cfg.ExportRetentionDays,
		CleanupEnabled:      cfg.CleanupEnabled,
	})

	// Crash recovery: fail jobs orphaned by the previous process and resume
	// photos left mid style-transfer.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := w.ResetOrphanedJobs(startupCtx); err != nil {
		log.Printf("Failed to reset orphaned jobs: %v", err)
	}
	if err := w.ResumeStuckStyleTransfers(startupCtx); err != nil {
		log.Printf("Failed to resume stuck style transfers: %v", err)
	}
	startupCancel()

	go w.RunStuckJobLoop(workerCtx)
	go w.RunCleanupLoop(workerCtx)

	// Create API handler
	handler := api.NewHandler(database, blob, w, notifier, cfg.JWTSecret, api.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		CorsAllowedOrigins: cfg.CORSAllowedOrigins,
		LocalFilesDir:      localFilesDir,
	})

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Signal in-flight tasks to stop, then wait for them to persist their
	// terminal statuses. Provider polls can run for minutes, so tasks are
	// cancelled rather than drained; the sweep on next startup fails anything
	// that could not finish.
	workerCancel()
	w.Wait()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
