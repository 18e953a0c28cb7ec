package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.LLMModel != "gpt-4o-mini" {
		t.Errorf("expected default llm model gpt-4o-mini, got %s", d.LLMModel)
	}
	if d.CacheTTLDays != 1 {
		t.Errorf("expected default cache_ttl_days 1, got %d", d.CacheTTLDays)
	}
	if d.ContentTTLDays != 3 {
		t.Errorf("expected default content_ttl_days 3, got %d", d.ContentTTLDays)
	}
	if d.LLMMaxRetries != 3 {
		t.Errorf("expected default llm_max_retries 3, got %d", d.LLMMaxRetries)
	}
	if d.LLMRetryDelaySeconds != 2 {
		t.Errorf("expected default llm_retry_delay_seconds 2, got %f", d.LLMRetryDelaySeconds)
	}
	if !d.ScraperHeadless {
		t.Errorf("expected default scraper_headless true")
	}
	if d.ScraperDelaySeconds != 2 {
		t.Errorf("expected default scraper_delay_seconds 2, got %f", d.ScraperDelaySeconds)
	}
	if d.DatabasePath != "./kaggledb.db" {
		t.Errorf("expected default db path ./kaggledb.db, got %s", d.DatabasePath)
	}
	if d.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", d.LogLevel)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
openai_api_key: "test-key"
kaggle_username: "someone"
cache_ttl_days: 2
llm_model: "gpt-4o"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAIAPIKey != "test-key" {
		t.Errorf("expected openai_api_key test-key, got %s", cfg.OpenAIAPIKey)
	}
	if cfg.KaggleUsername != "someone" {
		t.Errorf("expected kaggle_username someone, got %s", cfg.KaggleUsername)
	}
	if cfg.CacheTTLDays != 2 {
		t.Errorf("expected cache_ttl_days 2, got %d", cfg.CacheTTLDays)
	}
	if cfg.LLMModel != "gpt-4o" {
		t.Errorf("expected llm_model gpt-4o, got %s", cfg.LLMModel)
	}
	// content TTL is fixed regardless of what the file says
	if cfg.ContentTTLDays != 3 {
		t.Errorf("expected content_ttl_days fixed at 3, got %d", cfg.ContentTTLDays)
	}
	// Defaults should be preserved for unset fields
	if cfg.ScraperDelaySeconds != 2 {
		t.Errorf("expected default scraper delay, got %f", cfg.ScraperDelaySeconds)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	path := writeConfig(t, `
kaggle_username: "someone"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing openai_api_key")
	}
}

func TestLoad_InvalidScraperDelay(t *testing.T) {
	path := writeConfig(t, `
openai_api_key: "test-key"
scraper_delay_seconds: 0.5
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for scraper_delay_seconds below the polite floor")
	}
}

func TestLoad_InvalidMaxRetries(t *testing.T) {
	path := writeConfig(t, `
openai_api_key: "test-key"
llm_max_retries: 0
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for llm_max_retries < 1")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
openai_api_key: "test
  invalid: yaml: [
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvConfigPath(t *testing.T) {
	path := writeConfig(t, `
openai_api_key: "env-key"
`)
	t.Setenv("KAGGLEDB_CONFIG", path)
	cfg, err := Load("wrong-path.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAIAPIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.OpenAIAPIKey)
	}
}

func TestLoad_EnvDBPath(t *testing.T) {
	path := writeConfig(t, `
openai_api_key: "test-key"
`)
	t.Setenv("KAGGLEDB_DB", "/custom/db.sqlite")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabasePath != "/custom/db.sqlite" {
		t.Errorf("expected /custom/db.sqlite, got %s", cfg.DatabasePath)
	}
}

func TestLoad_EnvAPIKeyOverride(t *testing.T) {
	path := writeConfig(t, `
openai_api_key: "file-key"
`)
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAIAPIKey != "env-key" {
		t.Errorf("expected env override env-key, got %s", cfg.OpenAIAPIKey)
	}
}
