package payment

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the reconciliation worker.
type Config struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	PendingTimeout time.Duration `yaml:"pending_timeout"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	BatchSize      int           `yaml:"batch_size"`
	WorkerCount    int           `yaml:"worker_count"`
}

// LoadConfig loads reconciler settings from the yaml file named by
// RECONCILER_CONFIG, with env-var fallbacks for individual fields.
func LoadConfig() (Config, error) {
	cfg := Config{
		PollInterval:   getenvDuration("RECONCILER_POLL_INTERVAL", time.Minute),
		PendingTimeout: getenvDuration("RECONCILER_PENDING_TIMEOUT", 15*time.Minute),
		RetryBackoff:   getenvDuration("RECONCILER_RETRY_BACKOFF", 5*time.Second),
		BatchSize:      getenvIntDefault("RECONCILER_BATCH_SIZE", 50),
		WorkerCount:    getenvIntDefault("RECONCILER_WORKERS", 5),
	}

	if path := os.Getenv("RECONCILER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 5
	}
	return cfg, nil
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
