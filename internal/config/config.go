package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// StorageConfig selects the object store for uploaded datasets: S3 when
// UPLOAD_BUCKET is set, otherwise a directory on local disk.
type StorageConfig struct {
	StorageDir        string `env:"STORAGE_DIR" envDefault:"./data/objects"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	UploadBucket      string `env:"UPLOAD_BUCKET"`
}

func (c StorageConfig) UseS3() bool {
	return c.UploadBucket != ""
}

// RemoteConfig points at the fine-tuning API the console drives.
type RemoteConfig struct {
	APIBaseURL  string        `env:"FINETUNE_API_URL,notEmpty,required"`
	APIToken    string        `env:"FINETUNE_API_TOKEN"`
	Timeout     time.Duration `env:"FINETUNE_API_TIMEOUT" envDefault:"60s"`
	PricingFile string        `env:"PRICING_FILE"`
}

type LogConfig struct {
	LogFile  string `env:"LOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Parse fills cfg from the environment.
func Parse[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}
