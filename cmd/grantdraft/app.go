package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/internal/core"
	"github.com/tyloni/oregon-grant-automation/internal/llm"
	"github.com/tyloni/oregon-grant-automation/internal/repository"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

// grantStore is what the CLI needs from a repository backend beyond core.Store.
type grantStore interface {
	core.Store
	core.GrantProvider
	PutGrant(ctx context.Context, grant *schema.Grant) error
	ListGrants(ctx context.Context) ([]*schema.Grant, error)
}

type app struct {
	cfg     *core.Config
	logger  core.Logger
	catalog *catalog.Catalog
	store   grantStore
	service *core.Service

	closers []func() error
}

// newApp wires config, logging, catalog, provider, store and locker into a
// Service. The provider is only contacted when a command asks for text.
func newApp(ctx context.Context, cfg *core.Config, logger core.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	a.catalog = cat

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(&cfg.LLM, provider)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	var locker core.Locker
	if cfg.RedisAddr != "" {
		redisLocker, err := core.NewRedisLocker(cfg.RedisAddr, 0)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis locker: %w", err)
		}
		locker = redisLocker
		a.closers = append(a.closers, redisLocker.Close)
	}

	service, err := core.NewService(core.ServiceDeps{
		Store:         store,
		Grants:        store,
		Generator:     client,
		Catalog:       cat,
		Locker:        locker,
		Logger:        logger,
		Concurrency:   cfg.Concurrency,
		RejectPartial: !cfg.AllowPartial,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = service

	logger.Debug("Application wired",
		"catalog_version", cat.Version(),
		"model", client.Model(),
		"provider", cfg.LLMProvider,
		"store", cfg.StoreDriver,
	)
	return a, nil
}

// Close releases the store and locker connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load section catalog: %w", err)
	}
	return cat, nil
}

func newProvider(ctx context.Context, cfg *core.Config) (llm.Provider, error) {
	if cfg.LLM.APIKey == "" {
		return missingKeyProvider{}, nil
	}

	openAI, err := llm.NewOpenAIProvider(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	if cfg.LLMProvider != "genkit" {
		return openAI, nil
	}

	genkitProvider, err := llm.NewGenkitProvider(ctx, openAI, cfg.LLM.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("create genkit provider: %w", err)
	}
	return genkitProvider, nil
}

func openStore(cfg *core.Config) (grantStore, func() error, error) {
	switch cfg.StoreDriver {
	case "sqlite", "postgres":
		dsn := cfg.StoreDSN
		if dsn == "" && cfg.StoreDriver == "sqlite" {
			dsn = filepath.Join(cfg.DataDir, "grantdraft.db")
		}
		if dsn == "" {
			return nil, nil, fmt.Errorf("STORE_DSN is required for %s", cfg.StoreDriver)
		}
		if cfg.StoreDriver == "sqlite" && cfg.StoreDSN == "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		store, err := repository.OpenSQLStore(cfg.StoreDriver, dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := repository.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

// missingKeyProvider lets read-only commands run without credentials.
type missingKeyProvider struct{}

func (missingKeyProvider) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	return "", llm.NewUnavailableError(0, "LLM_API_KEY (or GROQ_API_KEY) is not set", nil)
}
