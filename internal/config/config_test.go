package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("CONTEXT_CACHE", "")
	t.Setenv("HISTORY_LIMIT", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.ContextCache != "memory" {
		t.Fatalf("expected memory context cache by default, got %s", cfg.ContextCache)
	}
	if cfg.ContextCacheTTL != time.Hour {
		t.Fatalf("expected 1h cache ttl, got %s", cfg.ContextCacheTTL)
	}
	if cfg.ContextSweepSchedule != "@every 15m" {
		t.Fatalf("expected 15m sweep schedule, got %s", cfg.ContextSweepSchedule)
	}
	if cfg.HistoryLimit != 10 {
		t.Fatalf("expected history limit 10, got %d", cfg.HistoryLimit)
	}
	if cfg.DBMaxConns != 20 {
		t.Fatalf("expected 20 max conns, got %d", cfg.DBMaxConns)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("CONTEXT_CACHE", " Redis ")
	t.Setenv("CONTEXT_CACHE_TTL", "30m")
	t.Setenv("LLM_PROVIDER", "GEMINI")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("DB_MAX_CONNS", "5")
	t.Setenv("PUBLIC_BASE_URL", "https://rx.example.com/")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.ContextCache != "redis" {
		t.Fatalf("expected normalized cache kind, got %q", cfg.ContextCache)
	}
	if cfg.ContextCacheTTL != 30*time.Minute {
		t.Fatalf("expected ttl override, got %s", cfg.ContextCacheTTL)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected provider override, got %s", cfg.LLMProvider)
	}
	if cfg.LLMTemperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", cfg.LLMTemperature)
	}
	if cfg.DBMaxConns != 5 {
		t.Fatalf("expected max conns override, got %d", cfg.DBMaxConns)
	}
	if cfg.PublicBaseURL != "https://rx.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("HISTORY_LIMIT", "ten")
	t.Setenv("CONTEXT_CACHE_TTL", "soon")
	cfg := Load()
	if cfg.HistoryLimit != 10 {
		t.Fatalf("expected fallback history limit, got %d", cfg.HistoryLimit)
	}
	if cfg.ContextCacheTTL != time.Hour {
		t.Fatalf("expected fallback ttl, got %s", cfg.ContextCacheTTL)
	}
}

func TestChannelToggles(t *testing.T) {
	cfg := &Config{}
	if cfg.TelegramEnabled() || cfg.WhatsAppEnabled() {
		t.Fatalf("expected channels disabled without credentials")
	}
	cfg.TelegramBotToken = "123:abc"
	cfg.TwilioAccountSID = "AC1"
	cfg.TwilioAuthToken = "tok"
	cfg.TwilioWhatsAppNumber = "+15550001111"
	if !cfg.TelegramEnabled() || !cfg.WhatsAppEnabled() {
		t.Fatalf("expected channels enabled with credentials")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PHARMACY_NAME=FromFile\nPORT=7000\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PORT", "9000")
	t.Setenv("PHARMACY_NAME", "")
	os.Unsetenv("PHARMACY_NAME")

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	cfg := Load()
	if cfg.Port != "9000" {
		t.Fatalf("expected existing env to win, got %s", cfg.Port)
	}
	if cfg.PharmacyName != "FromFile" {
		t.Fatalf("expected value from .env, got %s", cfg.PharmacyName)
	}
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	cfg := Load()
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}
