package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/trekvista/booking/logger"
)

// LoadEnv loads environment variables from a .env file if one exists.
// In production the environment is expected to be set by the platform.
func LoadEnv() {
	if _, err := os.Stat(".env"); err != nil {
		logger.InfoLogger.Info("No .env file found, using process environment")
		return
	}

	if err := godotenv.Load(); err != nil {
		logger.ErrorLogger.Errorf("Failed to load .env file: %v", err)
		return
	}
	logger.InfoLogger.Info(".env file loaded")
}
