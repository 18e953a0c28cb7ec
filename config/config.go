package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DatabasePath         string  `yaml:"database_path"`
	OpenAIAPIKey         string  `yaml:"openai_api_key"`
	KaggleUsername       string  `yaml:"kaggle_username"`
	KaggleKey            string  `yaml:"kaggle_key"`
	Debug                bool    `yaml:"debug"`
	LogLevel             string  `yaml:"log_level"`
	CacheTTLDays         int     `yaml:"cache_ttl_days"`
	ContentTTLDays       int     `yaml:"content_ttl_days"`
	LLMModel             string  `yaml:"llm_model"`
	LLMMaxRetries        int     `yaml:"llm_max_retries"`
	LLMRetryDelaySeconds float64 `yaml:"llm_retry_delay_seconds"`
	ScraperHeadless      bool    `yaml:"scraper_headless"`
	ScraperDelaySeconds  float64 `yaml:"scraper_delay_seconds"`
	HTTPAddr             string  `yaml:"http_addr"`
	RedisAddr            string  `yaml:"redis_addr"`
	PlatformBaseURL      string  `yaml:"platform_base_url"`
	SweepIntervalMinutes int     `yaml:"sweep_interval_minutes"`
	DiscussionPages      int     `yaml:"discussion_pages"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		DatabasePath:         "./kaggledb.db",
		Debug:                false,
		LogLevel:             "info",
		CacheTTLDays:         1,
		ContentTTLDays:       3,
		LLMModel:             "gpt-4o-mini",
		LLMMaxRetries:        3,
		LLMRetryDelaySeconds: 2,
		ScraperHeadless:      true,
		ScraperDelaySeconds:  2,
		HTTPAddr:             ":8080",
		PlatformBaseURL:      "https://www.kaggle.com",
		SweepIntervalMinutes: 60,
		DiscussionPages:      3,
	}
}

// Load reads a YAML config file and returns a validated Config.
// Environment variables KAGGLEDB_CONFIG and KAGGLEDB_DB can override file
// path and database path respectively; OPENAI_API_KEY overrides the LLM key.
func Load(path string) (Config, error) {
	if envPath := os.Getenv("KAGGLEDB_CONFIG"); envPath != "" {
		path = envPath
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	if envDB := os.Getenv("KAGGLEDB_DB"); envDB != "" {
		cfg.DatabasePath = envDB
	}
	if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		cfg.OpenAIAPIKey = envKey
	}

	// content TTL is fixed by design; config files cannot widen it.
	cfg.ContentTTLDays = 3

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that required fields are present and values are valid.
// It fails fast at startup rather than at first LLM call, per the
// configuration error-kind policy: a missing credential should surface
// before any acquisition work begins.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("openai_api_key is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.CacheTTLDays <= 0 {
		return fmt.Errorf("cache_ttl_days must be positive")
	}
	if c.LLMMaxRetries < 1 {
		return fmt.Errorf("llm_max_retries must be at least 1")
	}
	if c.ScraperDelaySeconds < 2 {
		return fmt.Errorf("scraper_delay_seconds must be at least 2 (polite-scrape floor)")
	}
	return nil
}
