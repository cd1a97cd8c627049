// Package config loads the pipeline configuration file and the process environment.
package config

import (
	"os"
	"path/filepath"
	"sync"

	"fjacquet/ledgerflow/internal/logging"

	"github.com/joho/godotenv"
)

var once sync.Once

// LoadEnv loads environment variables from a .env file in the working
// directory or its parent, if one exists. Variables already set win.
func LoadEnv() {
	once.Do(func() {
		envFile := ".env"
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			envFile = filepath.Join("..", ".env")
			if _, err := os.Stat(envFile); os.IsNotExist(err) {
				return
			}
		}
		_ = godotenv.Load(envFile)
	})
}

// GetEnv retrieves an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

// ConfigureLoggingFromConfig builds the application logger from the Log section.
func ConfigureLoggingFromConfig(cfg *Config) logging.Logger {
	if cfg == nil {
		return logging.NewLogrusAdapter(GetEnv("LOG_LEVEL", "info"), GetEnv("LOG_FORMAT", "text"))
	}
	return logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
}
