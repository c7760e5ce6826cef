// Package config loads runtime settings from the environment, with a
// .env file honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config collects everything the pipeline and API need at startup.
type Config struct {
	// DBDriver is sqlite, postgres, or memory.
	DBDriver string
	// DBPath is the sqlite file path or the postgres DSN.
	DBPath string

	// Engine selects the inference backend: local, gemini, or fake.
	Engine string
	Local  LocalEngineConfig
	Gemini GeminiEngineConfig

	// ClaimTTL is the staleness window after which an abandoned
	// generation claim is reclaimable.
	ClaimTTL time.Duration
	// InferenceBudget bounds a single model call.
	InferenceBudget time.Duration

	Port     string
	Env      string
	Artifact ArtifactConfig
}

type LocalEngineConfig struct {
	BaseURL     string
	Model       string
	LoadTimeout time.Duration
	RPS         float64
	Burst       int
}

type GeminiEngineConfig struct {
	APIKey string
	Model  string
}

type ArtifactConfig struct {
	Enabled   bool
	Backend   string // disk or s3
	DiskRoot  string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:        firstNonEmpty(strings.TrimSpace(os.Getenv("PIPELINE_DB_DRIVER")), "sqlite"),
		DBPath:          firstNonEmpty(strings.TrimSpace(os.Getenv("PIPELINE_DB")), "legisum.db"),
		Engine:          firstNonEmpty(strings.TrimSpace(os.Getenv("PIPELINE_ENGINE")), "local"),
		ClaimTTL:        durationEnv("PIPELINE_CLAIM_TTL", 10*time.Minute),
		InferenceBudget: durationEnv("PIPELINE_INFERENCE_BUDGET", 5*time.Minute),
		Env:             firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local"),
		Local: LocalEngineConfig{
			BaseURL:     firstNonEmpty(strings.TrimSpace(os.Getenv("LOCAL_MODEL_URL")), "http://127.0.0.1:8080"),
			Model:       firstNonEmpty(strings.TrimSpace(os.Getenv("LOCAL_MODEL_NAME")), "olmo-7b-instruct"),
			LoadTimeout: durationEnv("LOCAL_MODEL_LOAD_TIMEOUT", 10*time.Minute),
			RPS:         floatEnv("LOCAL_MODEL_RPS", 1),
			Burst:       intEnv("LOCAL_MODEL_BURST", 1),
		},
		Gemini: GeminiEngineConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.0-flash"),
		},
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown PIPELINE_DB_DRIVER %q", cfg.DBDriver)
	}
	switch cfg.Engine {
	case "local", "gemini", "fake":
	default:
		return nil, fmt.Errorf("unknown PIPELINE_ENGINE %q", cfg.Engine)
	}
	if cfg.Engine == "gemini" && cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini engine")
	}

	port := firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), "8082")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	cfg.Port = port

	cfg.Artifact = loadArtifactConfig(cfg.Env)
	return cfg, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	backend := firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_BACKEND")), "")
	cfg := ArtifactConfig{
		Enabled:   backend != "",
		Backend:   backend,
		DiskRoot:  firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_DISK_ROOT")), "artifacts"),
		Endpoint:  strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "legisum-artifacts"),
		UseSSL:    boolEnv("ARTIFACT_S3_USE_SSL", !strings.EqualFold(env, "local")),
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}

func boolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
