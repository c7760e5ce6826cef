// Package app builds the process-level dependencies from configuration.
// Both binaries share it.
package app

import (
	"context"
	"fmt"

	"legisum/internal/artifact"
	"legisum/internal/config"
	"legisum/internal/engine"
	"legisum/internal/store"
)

// OpenStore opens the configured persistence backend.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		return store.OpenPostgres(cfg.DBPath)
	default:
		return store.OpenSQLite(cfg.DBPath)
	}
}

// BuildEngine wraps the configured backend in the serializing Manager.
func BuildEngine(cfg *config.Config) (*engine.Manager, error) {
	var eng engine.Engine
	var err error
	switch cfg.Engine {
	case "fake":
		eng = engine.NewFakeEngine()
	case "gemini":
		// The genai client reads GEMINI_API_KEY from the environment.
		eng, err = engine.NewGeminiEngine(context.Background(), cfg.Gemini.Model)
	default:
		eng, err = engine.NewLocalEngine(engine.LocalConfig{
			BaseURL:     cfg.Local.BaseURL,
			Model:       cfg.Local.Model,
			LoadTimeout: cfg.Local.LoadTimeout,
			RPS:         cfg.Local.RPS,
			Burst:       cfg.Local.Burst,
		})
	}
	if err != nil {
		return nil, err
	}
	return engine.NewManager(eng, engine.ManagerConfig{Budget: cfg.InferenceBudget})
}

// BuildArchive returns nil when archiving is disabled.
func BuildArchive(cfg *config.Config) (artifact.Archive, error) {
	if !cfg.Artifact.Enabled {
		return nil, nil
	}
	switch cfg.Artifact.Backend {
	case "disk":
		return artifact.NewDiskArchive(cfg.Artifact.DiskRoot)
	case "s3":
		return artifact.NewS3Archive(artifact.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Artifact.Backend)
	}
}
