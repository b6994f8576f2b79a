package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.ServerPort != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.ServerPort)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %s", cfg.Session.TTL)
	}
	if cfg.Mail.Transport != "log" {
		t.Fatalf("expected log mail transport, got %q", cfg.Mail.Transport)
	}
	if len(cfg.CORS.AllowedOrigins) != 3 {
		t.Fatalf("expected 3 default origins, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SSL", "true")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := LoadConfig()
	if cfg.ServerPort != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.ServerPort)
	}
	if !cfg.Database.UseSSL {
		t.Fatalf("expected DB_SSL to enable ssl")
	}
	if cfg.Session.Backend != "redis" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.Session.Backend)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %s", cfg.Session.TTL)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestQueueDeliveryConfig(t *testing.T) {
	cfg := LoadConfig()
	if cfg.MQ.MaxAttempts != 5 || cfg.MQ.PubSub.AckDeadline != time.Minute {
		t.Fatalf("unexpected queue defaults: %+v", cfg.MQ)
	}

	t.Setenv("MQ_MAX_ATTEMPTS", "8")
	t.Setenv("PUBSUB_RETRY_MAX_BACKOFF", "2m")
	cfg = LoadConfig()
	if cfg.MQ.MaxAttempts != 8 || cfg.MQ.PubSub.RetryMaxBackoff != 2*time.Minute {
		t.Fatalf("unexpected queue overrides: %+v", cfg.MQ)
	}
}
