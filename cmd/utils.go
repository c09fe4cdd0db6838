package cmd

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"finetune-console/internal/client"
	"finetune-console/internal/config"
	"finetune-console/internal/console"
	"finetune-console/internal/dataset"
	"finetune-console/internal/storage"
	"finetune-console/internal/tasks"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// SetupLogging installs the default slog logger. The returned func closes the
// log file, if any.
func SetupLogging(cfg config.LogConfig) func() {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Printf("invalid LOG_LEVEL, using info: %v", err)
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, level)
	slog.SetDefault(logger)

	return func() {
		if err := cleanup(); err != nil {
			log.Printf("error closing log file: %v", err)
		}
	}
}

func CreateObjectStore(ctx context.Context, cfg config.StorageConfig) storage.ObjectStore {
	if !cfg.UseS3() {
		store, err := storage.NewLocalObjectStore(cfg.StorageDir)
		if err != nil {
			log.Fatalf("Failed to create local object store: %v", err)
		}
		slog.Info("using local object store", "dir", cfg.StorageDir)
		return store
	}

	store, err := storage.NewS3ObjectStore(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	}, cfg.UploadBucket)
	if err != nil {
		log.Fatalf("Failed to create S3 object store: %v", err)
	}

	if err := store.CreateBucket(ctx); err != nil {
		log.Fatalf("Failed to create upload bucket %s: %v", cfg.UploadBucket, err)
	}

	slog.Info("using s3 object store", "bucket", cfg.UploadBucket, "endpoint", cfg.S3EndpointURL)
	return store
}

func CreateConsole(cfg config.RemoteConfig) *console.Console {
	pricing, err := tasks.LoadPricing(cfg.PricingFile)
	if err != nil {
		log.Fatalf("Failed to load pricing: %v", err)
	}

	remote := client.New(cfg.APIBaseURL, cfg.APIToken, cfg.Timeout)
	return console.New(remote, dataset.DefaultPipeline(), tasks.NewAdmissionController(pricing))
}
