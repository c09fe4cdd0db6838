package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"finetune-console/cmd"
	"finetune-console/internal/api"
	"finetune-console/internal/config"
	"finetune-console/internal/core"
	"finetune-console/internal/database"
	"finetune-console/internal/dataset"
	"finetune-console/internal/messaging"
	"finetune-console/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

type Config struct {
	Root string `env:"ROOT" envDefault:"./finetune-console"`
	Port int    `env:"PORT" envDefault:"3001"`

	config.RemoteConfig
	config.LogConfig
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "finetune-console.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := database.NewDatabase(path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	return db
}

// createQueue re-enqueues runs that did not finish before the last shutdown.
func createQueue(db *gorm.DB) *messaging.InMemoryQueue {
	if err := db.Model(&database.ValidationRun{}).Where("status = ?", database.RunRunning).Update("status", database.RunQueued).Error; err != nil {
		log.Fatalf("Failed to reset interrupted validation runs: %v", err)
	}

	var runs []database.ValidationRun
	if err := db.Where("status = ?", database.RunQueued).Order("creation_time").Find(&runs).Error; err != nil {
		log.Fatalf("Failed to fetch queued validation runs: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	for _, run := range runs {
		if err := queue.PublishValidationTask(context.Background(), messaging.ValidationPayload{
			RunId:     run.Id,
			ObjectKey: run.ObjectKey,
			FileName:  run.FileName,
		}); err != nil {
			log.Fatalf("Failed to publish validation task: %v", err)
		}
	}

	if len(runs) > 0 {
		slog.Info("requeued unfinished validation runs", "count", len(runs))
	}

	return queue
}

func createServer(backend *api.BackendService, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		backend.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.Root, "backend.log")
	}
	closeLog := cmd.SetupLogging(cfg.LogConfig)
	defer closeLog()

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "remote", cfg.APIBaseURL)

	db := createDatabase(cfg.Root)

	store, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	queue := createQueue(db)

	// Cancellations arrive in-process, so the worker does not poll the db.
	worker := core.NewTaskProcessor(db, store, dataset.DefaultPipeline(), queue, 0)

	backend := api.NewBackendService(db, store, queue, cmd.CreateConsole(cfg.RemoteConfig), worker)
	server := createServer(backend, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting worker")
	go worker.Start(ctx)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
