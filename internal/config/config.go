package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the assistant reads from the environment.
type Config struct {
	ChatbotAPIBase string
	ChatbotTimeout time.Duration
	AutoSpeakDelay time.Duration
	SpeechRate     float64
	TTSCommand     string

	Port     string
	LogLevel string
	LogJSON  bool

	MongoURI      string
	MongoDatabase string
}

// LoadEnv reads a .env file into the process environment. A missing file is
// not an error: the variables may come from the real environment instead.
func LoadEnv() error {
	err := godotenv.Load(".env")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		log.Printf("Failed to load .env file: %v", err)
		return err
	}
	return nil
}

// GetEnvDefault returns the value of key, or def when it is unset or empty.
func GetEnvDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

// Load builds a Config from the environment, applying defaults for anything
// unset. Malformed values are reported instead of silently replaced.
func Load() (*Config, error) {
	cfg := &Config{
		ChatbotAPIBase: GetEnvDefault("CHATBOT_API_BASE", "http://localhost:5000"),
		TTSCommand:     os.Getenv("TTS_COMMAND"),
		Port:           GetEnvDefault("PORT", "8080"),
		LogLevel:       GetEnvDefault("LOG_LEVEL", "info"),
		MongoURI:       os.Getenv("MONGODB_URI"),
		MongoDatabase:  GetEnvDefault("MONGODB_DATABASE", "KrishiMitra"),
	}
	if _, set := os.LookupEnv("TTS_COMMAND"); !set {
		cfg.TTSCommand = "espeak-ng"
	}

	var err error
	if cfg.ChatbotTimeout, err = durationEnv("CHATBOT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.AutoSpeakDelay, err = durationEnv("AUTO_SPEAK_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SpeechRate, err = floatEnv("SPEECH_RATE", 0.8); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = boolEnv("LOG_JSON", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}
