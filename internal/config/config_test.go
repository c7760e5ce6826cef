package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PIPELINE_DB_DRIVER", "")
	t.Setenv("PIPELINE_ENGINE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBPath != "legisum.db" {
		t.Fatalf("db defaults: %q %q", cfg.DBDriver, cfg.DBPath)
	}
	if cfg.Engine != "local" {
		t.Fatalf("engine default = %q", cfg.Engine)
	}
	if cfg.ClaimTTL != 10*time.Minute {
		t.Fatalf("claim ttl default = %v", cfg.ClaimTTL)
	}
	if cfg.Port != ":8082" {
		t.Fatalf("port default = %q", cfg.Port)
	}
	if cfg.Artifact.Enabled {
		t.Fatal("artifact archiving enabled without a backend")
	}
}

func TestLoadOverridesAndValidation(t *testing.T) {
	t.Setenv("PIPELINE_DB_DRIVER", "memory")
	t.Setenv("PIPELINE_ENGINE", "fake")
	t.Setenv("PIPELINE_CLAIM_TTL", "30m")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBDriver != "memory" || cfg.Engine != "fake" {
		t.Fatalf("overrides not applied: %q %q", cfg.DBDriver, cfg.Engine)
	}
	if cfg.ClaimTTL != 30*time.Minute {
		t.Fatalf("claim ttl = %v", cfg.ClaimTTL)
	}
	if cfg.Port != ":9000" {
		t.Fatalf("port = %q", cfg.Port)
	}

	t.Setenv("PIPELINE_ENGINE", "cloudbrain")
	if _, err := Load(); err == nil {
		t.Fatal("unknown engine accepted")
	}

	t.Setenv("PIPELINE_ENGINE", "gemini")
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("gemini engine accepted without api key")
	}
}
