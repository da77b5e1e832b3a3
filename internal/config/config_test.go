package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":                "",
		"PORT":                   "",
		"REDIS_URL":              "",
		"DEFAULT_GST_PERCENTAGE": "",
		"RATE_LIMIT_WINDOW":      "",
		"WEBHOOKS_ENABLED":       "",
		"SHUTDOWN_GRACE_PERIOD":  "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("AppEnv = %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr())
	}
	if cfg.RedisURL != "" {
		t.Fatalf("RedisURL = %q, want empty", cfg.RedisURL)
	}
	if cfg.DefaultGSTPercentage != 18 {
		t.Fatalf("DefaultGSTPercentage = %v", cfg.DefaultGSTPercentage)
	}
	if cfg.RateLimitWindow != time.Minute || cfg.RateLimitMax != 120 {
		t.Fatalf("rate limit defaults: %v / %d", cfg.RateLimitWindow, cfg.RateLimitMax)
	}
	if cfg.WebhooksEnabled {
		t.Fatal("webhooks should default off")
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v", cfg.ShutdownGracePeriod)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":                "production",
		"PORT":                   "9090",
		"REDIS_URL":              "redis://localhost:6379/0",
		"CORS_ALLOWED_ORIGINS":   "https://a.example, https://b.example",
		"DEFAULT_GST_PERCENTAGE": "12.5",
		"RATE_LIMIT_WINDOW":      "30s",
		"RATE_LIMIT_MAX":         "10",
		"WEBHOOKS_ENABLED":       "true",
		"WEBHOOK_BACKOFF_BASE":   "250ms",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppEnv != "production" || cfg.HTTPAddr() != ":9090" {
		t.Fatalf("basics: %q %q", cfg.AppEnv, cfg.HTTPAddr())
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.DefaultGSTPercentage != 12.5 {
		t.Fatalf("DefaultGSTPercentage = %v", cfg.DefaultGSTPercentage)
	}
	if cfg.RateLimitWindow != 30*time.Second || cfg.RateLimitMax != 10 {
		t.Fatalf("rate limit: %v / %d", cfg.RateLimitWindow, cfg.RateLimitMax)
	}
	if !cfg.WebhooksEnabled || cfg.WebhookBackoffBase != 250*time.Millisecond {
		t.Fatalf("webhooks: %v %v", cfg.WebhooksEnabled, cfg.WebhookBackoffBase)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DEFAULT_GST_PERCENTAGE": "lots",
		"RATE_LIMIT_WINDOW":      "soon",
		"RATE_LIMIT_MAX":         "many",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultGSTPercentage != 18 {
		t.Fatalf("DefaultGSTPercentage = %v", cfg.DefaultGSTPercentage)
	}
	if cfg.RateLimitWindow != time.Minute || cfg.RateLimitMax != 120 {
		t.Fatalf("rate limit fallbacks: %v / %d", cfg.RateLimitWindow, cfg.RateLimitMax)
	}
}
