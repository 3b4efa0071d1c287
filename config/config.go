// Package config provides configuration for the assistant gateway.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the gateway configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Completion provider (OpenAI-compatible)
	OpenAIBaseURL string
	OpenAIAPIKey  string
	Model         string
	MaxTokens     int
	Temperature   float64
	LLMTimeout    time.Duration

	// Identity provider
	SessionURL string
	DevToken   string
	DevUser    string

	// Prompt policy
	PolicyPath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:      getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:   getEnv("DATABASE_URL", "file:assistant.db?cache=shared&mode=rwc"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		Model:         getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		MaxTokens:     getEnvInt("LLM_MAX_TOKENS", 300),
		Temperature:   getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMTimeout:    time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		SessionURL:    getEnv("AUTH_SESSION_URL", ""),
		DevToken:      getEnv("DEV_TOKEN", ""),
		DevUser:       getEnv("DEV_USER", "dev@localhost"),
		PolicyPath:    getEnv("PROMPT_POLICY_PATH", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
