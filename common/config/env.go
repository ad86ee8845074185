package config

import (
	"log/slog"
	"os"
)

// GetEnv retrieves an environment variable or returns a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MustGetEnv retrieves a required environment variable. A missing value
// is a ConfigMissing error (spec §7): it logs and exits with code 1
// rather than continuing, since the service cannot run correctly
// without it.
func MustGetEnv(log *slog.Logger, key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Error("required environment variable not set", slog.String("key", key))
		os.Exit(1)
	}
	return value
}
