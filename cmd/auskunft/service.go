package main

import (
	"context"
	"fmt"

	"github.com/antwort-dev/auskunft/pkg/config"
	"github.com/antwort-dev/auskunft/pkg/debug"
	"github.com/antwort-dev/auskunft/pkg/engine"
	"github.com/antwort-dev/auskunft/pkg/provider"
	"github.com/antwort-dev/auskunft/pkg/provider/factory"
	"github.com/antwort-dev/auskunft/pkg/provider/ollama"
	"github.com/antwort-dev/auskunft/pkg/provider/watsonx"
	"github.com/antwort-dev/auskunft/pkg/storage"
	"github.com/antwort-dev/auskunft/pkg/storage/memory"
	"github.com/antwort-dev/auskunft/pkg/storage/postgres"
	"github.com/antwort-dev/auskunft/pkg/storage/sqlite"
)

// loadConfig reads the configuration. Logging is initialized separately
// so command flags can override the configured level first.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// initLogging applies the config's log settings (AUSKUNFT_LOG_LEVEL and
// AUSKUNFT_DEBUG still take precedence inside debug.Init).
func initLogging(cfg *config.Config) {
	debug.Init(cfg.Observability.Logging.Debug, cfg.Observability.Logging.Level)
}

// buildProvider constructs the configured generation backend. Credential
// validation happens here, before any server socket is opened.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	return factory.New(factory.Config{
		Backend: cfg.LLM.Backend,
		Ollama: ollama.Config{
			Host:           cfg.LLM.Ollama.Host,
			Timeout:        cfg.LLM.Ollama.Timeout,
			EmbeddingModel: cfg.LLM.Ollama.EmbeddingModel,
		},
		Watsonx: watsonx.Config{
			APIKey:         cfg.LLM.Watsonx.APIKey,
			ProjectID:      cfg.LLM.Watsonx.ProjectID,
			URL:            cfg.LLM.Watsonx.URL,
			Timeout:        cfg.LLM.Watsonx.Timeout,
			EmbeddingModel: cfg.LLM.Watsonx.EmbeddingModel,
		},
	})
}

// buildStore constructs the configured persistence backend.
func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		return memory.New(cfg.Storage.MaxSize), nil

	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})

	case "sqlite":
		return sqlite.New(ctx, sqlite.Config{Path: cfg.Storage.SQLite.Path})

	default:
		return nil, fmt.Errorf("unsupported storage type %q (supported: memory, postgres, sqlite)", cfg.Storage.Type)
	}
}

// buildEngine wires provider and store into the answering engine.
func buildEngine(cfg *config.Config, prov provider.Provider, store storage.Store) (*engine.Engine, error) {
	return engine.New(prov, store, engine.Config{
		GenerationModel: cfg.LLM.GenerationModel(),
		EnrichmentModel: cfg.LLM.EnrichmentModel(),
		StoreKind:       cfg.Storage.Type,
	})
}
