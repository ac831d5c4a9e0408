// Package config loads environment-driven settings for the ingestion
// pipeline, with sane defaults so a local run needs no .env file beyond
// an LLM API key.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings.
type Config struct {
	DBPath               string
	HTTPPort             string
	Region               string
	Environment          string
	AudioDir             string
	SourcesConfigPath    string
	ExtractionConfigPath string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	MapboxToken          string
	MapboxBaseURL        string
	SchedulerTickSeconds int
	MaxConcurrentSources int
	EnableAudioWatcher   bool
}

// Load reads configuration from the environment and an optional .env
// file, applying defaults for everything a local run doesn't set.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DBPath:               getenv("DB_PATH", "./ingestion.db"),
		HTTPPort:             getenv("PORT", "8080"),
		Region:               getenv("REGION", "sussex-county-nj"),
		Environment:          getenv("ENVIRONMENT", "local"),
		AudioDir:             getenv("AUDIO_DIR", "./audio"),
		SourcesConfigPath:    getenv("SOURCES_CONFIG_PATH", "./config/sources.yaml"),
		ExtractionConfigPath: getenv("EXTRACTION_CONFIG_PATH", "./config/extraction.yaml"),
		OpenAIAPIKey:         getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getenv("OPENAI_BASE_URL", ""),
		MapboxToken:          getenv("MAPBOX_TOKEN", ""),
		MapboxBaseURL:        getenv("MAPBOX_BASE_URL", ""),
		SchedulerTickSeconds: clampInt(getenvInt("SCHEDULER_TICK_SECONDS", 300), 30, 3600),
		MaxConcurrentSources: clampInt(getenvInt("MAX_CONCURRENT_SOURCES", 8), 1, 64),
		EnableAudioWatcher:   getenvBool("ENABLE_AUDIO_WATCHER", true),
	}

	log.Printf("config: db=%s region=%s env=%s tick=%ds", cfg.DBPath, cfg.Region, cfg.Environment, cfg.SchedulerTickSeconds)
	return cfg
}

// TickInterval returns SchedulerTickSeconds as a time.Duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.SchedulerTickSeconds) * time.Second
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Now returns the current UTC time truncated to the second, used
// wherever a deterministic timestamp needs to be persisted.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
