package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/models"
)

const (
	defaultLLMTimeout     = 2 * time.Minute
	defaultLLMTemperature = 0.7
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string

	LLM LLMConfig
}

// LLMConfig configures the reasoning backend used by agents and predictions
type LLMConfig struct {
	Provider    string // "openai" or "gemini"
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
}

// New sets up all config related services
func New() *Config {
	env := os.Getenv("ENV")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:          os.Getenv("DB_URI"),
		DatabaseName: os.Getenv("DB_NAME"),
		BaseURL:      os.Getenv("BASE_URL"),
		Port:         os.Getenv("PORT"),
		Env:          env,
		LLM: LLMConfig{
			Provider:    envOrDefault("LLM_PROVIDER", "openai"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       os.Getenv("LLM_MODEL"),
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			Timeout:     durationFromEnv("LLM_TIMEOUT", defaultLLMTimeout),
			Temperature: float32FromEnv("LLM_TEMPERATURE", defaultLLMTemperature),
		},
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "error", err)
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{Message: message, Error: errText}})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_, _ = w.Write(b)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		zap.S().Warnw("ignoring invalid duration", "key", key, "value", v)
		return fallback
	}
	return d
}

func float32FromEnv(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		zap.S().Warnw("ignoring invalid float", "key", key, "value", v)
		return fallback
	}
	return float32(f)
}
