package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finetune-console/cmd"
	"finetune-console/internal/config"
	"finetune-console/internal/core"
	"finetune-console/internal/database"
	"finetune-console/internal/dataset"
	"finetune-console/internal/messaging"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL        string        `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL        string        `env:"RABBITMQ_URL,notEmpty,required"`
	CancelPollInterval time.Duration `env:"CANCEL_POLL_INTERVAL" envDefault:"2s"`
	WindowSize         int64         `env:"SCAN_WINDOW_BYTES" envDefault:"524288"`

	config.StorageConfig
	config.LogConfig
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	closeLog := cmd.SetupLogging(cfg.LogConfig)
	defer closeLog()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store := cmd.CreateObjectStore(context.Background(), cfg.StorageConfig)

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	pipeline := dataset.NewPipeline(dataset.Options{WindowSize: cfg.WindowSize})
	worker := core.NewTaskProcessor(db, store, pipeline, receiver, cfg.CancelPollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Start(ctx)
	}()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, stopping worker...")

	worker.Stop()
	cancel()
	<-done

	log.Println("Worker process stopped.")
}
